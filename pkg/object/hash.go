package object

import (
	"crypto/sha1"
	"strconv"
)

// Envelope returns the "type len\0" header that prefixes an object's content
// both on disk and when hashing.
func Envelope(objType Type, size int) []byte {
	header := make([]byte, 0, len(objType)+24)
	header = append(header, objType...)
	header = append(header, ' ')
	header = strconv.AppendInt(header, int64(size), 10)
	return append(header, 0)
}

// HashObject computes the identifier of content of the given type. It is the
// SHA-1 of the envelope "type len\0content", matching git.
func HashObject(objType Type, data []byte) ID {
	h := sha1.New()
	h.Write(Envelope(objType, len(data)))
	h.Write(data)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}
