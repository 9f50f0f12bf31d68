package loose

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	lru "github.com/hashicorp/golang-lru"
	"github.com/klauspost/compress/zlib"
	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/storage"
)

type cachedObject struct {
	kind object.Type
	data []byte
}

// Objects is a loose-object database with a 2-character fan-out directory
// layout: objects/ab/cdef0123...
type Objects struct {
	root  string
	cache *lru.Cache
}

var _ storage.ObjectDB = (*Objects)(nil)

// NewObjects creates an object database rooted at gitDir. cacheSize bounds
// the number of decoded objects kept in memory; zero disables the cache.
func NewObjects(gitDir string, cacheSize int) (*Objects, error) {
	o := &Objects{root: gitDir}
	if cacheSize > 0 {
		c, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("object cache: %w", err)
		}
		o.cache = c
	}
	return o, nil
}

func (o *Objects) objectPath(id object.ID) string {
	hex := id.String()
	return filepath.Join(o.root, "objects", hex[:2], hex[2:])
}

// HasObject implements storage.ObjectDB.
func (o *Objects) HasObject(ctx context.Context, id object.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if o.cache != nil && o.cache.Contains(id) {
		return true, nil
	}
	_, err := os.Stat(o.objectPath(id))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("object stat %s: %w", id, err)
	}
}

// WriteObject stores an object and returns its id. Writes are atomic: the
// compressed envelope goes to a temp file that is then renamed into place.
func (o *Objects) WriteObject(ctx context.Context, kind object.Type, data []byte) (object.ID, error) {
	id := object.HashObject(kind, data)

	ok, err := o.HasObject(ctx, id)
	if err != nil {
		return object.ZeroID, err
	}
	if ok {
		return id, nil
	}

	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, zlib.BestSpeed)
	if err != nil {
		return object.ZeroID, fmt.Errorf("object write deflate: %w", err)
	}
	if _, err := zw.Write(object.Envelope(kind, len(data))); err != nil {
		return object.ZeroID, fmt.Errorf("object write deflate: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return object.ZeroID, fmt.Errorf("object write deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return object.ZeroID, fmt.Errorf("object write deflate: %w", err)
	}

	dest := o.objectPath(id)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return object.ZeroID, fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return object.ZeroID, fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return object.ZeroID, fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return object.ZeroID, fmt.Errorf("object write close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o444); err != nil {
		os.Remove(tmpName)
		return object.ZeroID, fmt.Errorf("object write chmod: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return object.ZeroID, fmt.Errorf("object write rename: %w", err)
	}

	if o.cache != nil {
		o.cache.Add(id, cachedObject{kind: kind, data: append([]byte(nil), data...)})
	}
	return id, nil
}

// ReadObject retrieves an object by id, returning its kind and content.
func (o *Objects) ReadObject(ctx context.Context, id object.ID) (object.Type, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if o.cache != nil {
		if v, ok := o.cache.Get(id); ok {
			c := v.(cachedObject)
			return c.kind, append([]byte(nil), c.data...), nil
		}
	}

	f, err := os.Open(o.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, storage.ObjectNotFound(id)
		}
		return "", nil, fmt.Errorf("object read %s: %w", id, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: inflate: %w", id, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: inflate: %w", id, err)
	}

	kind, content, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", id, err)
	}
	if object.HashObject(kind, content) != id {
		return "", nil, fmt.Errorf("object read %s: content hash mismatch", id)
	}

	if o.cache != nil {
		o.cache.Add(id, cachedObject{kind: kind, data: append([]byte(nil), content...)})
	}
	return kind, content, nil
}

// parseEnvelope splits "type len\0content".
func parseEnvelope(raw []byte) (object.Type, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("invalid format (no NUL)")
	}
	header := raw[:nul]
	content := raw[nul+1:]

	sp := bytes.IndexByte(header, ' ')
	if sp < 0 {
		return "", nil, fmt.Errorf("invalid header %q", header)
	}
	kind, err := object.ParseType(string(header[:sp]))
	if err != nil {
		return "", nil, err
	}
	length, err := strconv.Atoi(string(header[sp+1:]))
	if err != nil {
		return "", nil, fmt.Errorf("invalid length %q: %w", header[sp+1:], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return kind, content, nil
}
