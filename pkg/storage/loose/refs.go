package loose

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	"github.com/sirupsen/logrus"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	symbolicPrefix = "ref: "
	packedRefsFile = "packed-refs"
)

// Refs stores references as plain files under the git directory. Reads fall
// back to packed-refs; writes always produce loose files.
type Refs struct {
	gitDir string
	logger logrus.FieldLogger

	// packedMu serializes packed-refs rewrites within the process; the
	// packed-refs.lock file guards against other processes.
	packedMu sync.Mutex
}

var _ storage.RefDB = (*Refs)(nil)

// NewRefs returns a reference database rooted at gitDir.
func NewRefs(gitDir string, logger logrus.FieldLogger) *Refs {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Refs{gitDir: gitDir, logger: logger.WithField("component", "loose-refs")}
}

func (r *Refs) refPath(name refs.Name) string {
	return filepath.Join(r.gitDir, filepath.FromSlash(string(name)))
}

// parseRefFile decodes the content of a loose reference file.
func parseRefFile(name refs.Name, data []byte) (refs.Reference, error) {
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, symbolicPrefix) {
		target := refs.Name(strings.TrimSpace(strings.TrimPrefix(content, symbolicPrefix)))
		return refs.NewSymbolicReference(name, target), nil
	}
	id, err := object.ParseID(content)
	if err != nil {
		return refs.Reference{}, fmt.Errorf("reference %q: %w", name, err)
	}
	return refs.NewReference(name, id), nil
}

func (r *Refs) readLoose(name refs.Name) (refs.Reference, bool, error) {
	data, err := os.ReadFile(r.refPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return refs.Reference{}, false, nil
		}
		// A directory where a file is expected means a longer name exists,
		// not this one.
		if info, statErr := os.Stat(r.refPath(name)); statErr == nil && info.IsDir() {
			return refs.Reference{}, false, nil
		}
		return refs.Reference{}, false, err
	}
	ref, err := parseRefFile(name, data)
	if err != nil {
		return refs.Reference{}, false, err
	}
	return ref, true, nil
}

// readPacked parses packed-refs. Peeled ("^") lines and comments are skipped.
func (r *Refs) readPacked() (map[refs.Name]object.ID, error) {
	f, err := os.Open(filepath.Join(r.gitDir, packedRefsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	defer f.Close()

	packed := make(map[refs.Name]object.ID)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := object.ParseID(parts[0])
		if err != nil {
			return nil, fmt.Errorf("read packed-refs: %q: %w", line, err)
		}
		packed[refs.Name(parts[1])] = id
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	return packed, nil
}

// current returns the reference from loose storage or packed-refs.
func (r *Refs) current(name refs.Name) (refs.Reference, bool, error) {
	ref, ok, err := r.readLoose(name)
	if err != nil || ok {
		return ref, ok, err
	}
	packed, err := r.readPacked()
	if err != nil {
		return refs.Reference{}, false, err
	}
	if id, ok := packed[name]; ok {
		return refs.NewReference(name, id), true, nil
	}
	return refs.Reference{}, false, nil
}

// ReadReference implements storage.RefDB.
func (r *Refs) ReadReference(ctx context.Context, name refs.Name) (refs.Reference, error) {
	if err := ctx.Err(); err != nil {
		return refs.Reference{}, err
	}
	ref, ok, err := r.current(name)
	if err != nil {
		return refs.Reference{}, fmt.Errorf("read reference %q: %w", name, err)
	}
	if !ok {
		return refs.Reference{}, storage.ReferenceNotFound(string(name))
	}
	return ref, nil
}

// ListReferences implements storage.RefDB. HEAD is listed only for an empty
// prefix.
func (r *Refs) ListReferences(ctx context.Context, prefix string) ([]refs.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := make(map[refs.Name]refs.Reference)

	packed, err := r.readPacked()
	if err != nil {
		return nil, err
	}
	for name, id := range packed {
		found[name] = refs.NewReference(name, id)
	}

	root := filepath.Join(r.gitDir, "refs")
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(r.gitDir, path)
		if err != nil {
			return err
		}
		name := refs.Name(filepath.ToSlash(rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ref, err := parseRefFile(name, data)
		if err != nil {
			return err
		}
		found[name] = ref
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	if prefix == "" {
		if head, ok, err := r.readLoose(refs.HEAD); err != nil {
			return nil, fmt.Errorf("list refs: %w", err)
		} else if ok {
			found[refs.HEAD] = head
		}
	}

	out := make([]refs.Reference, 0, len(found))
	for name, ref := range found {
		if storage.MatchPrefix(name, prefix) {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetReference implements storage.RefDB.
func (r *Refs) SetReference(ctx context.Context, ref refs.Reference) error {
	return r.update(ctx, ref.Name, func(old refs.Reference, exists bool) (refs.Reference, error) {
		return ref, nil
	})
}

// CompareAndSwapReference implements storage.RefDB.
func (r *Refs) CompareAndSwapReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error {
	return r.update(ctx, name, func(old refs.Reference, exists bool) (refs.Reference, error) {
		switch {
		case expectedOld.IsZero() && exists:
			return refs.Reference{}, fmt.Errorf("update ref %q: %w (expected absent, found %s)", name, storage.ErrRefConflict, old)
		case !expectedOld.IsZero() && !exists:
			return refs.Reference{}, fmt.Errorf("update ref %q: %w (expected %s, found none)", name, storage.ErrRefConflict, expectedOld)
		case !expectedOld.IsZero() && (old.IsSymbolic() || old.Target != expectedOld):
			return refs.Reference{}, fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, storage.ErrRefConflict, expectedOld, old)
		}
		return refs.NewReference(name, newID), nil
	})
}

// update writes the reference returned by next using lockfile + rename
// semantics. The reflog append happens after the rename; its failure is
// logged and leaves the reference update in place.
func (r *Refs) update(ctx context.Context, name refs.Name, next func(old refs.Reference, exists bool) (refs.Reference, error)) error {
	refPath := r.refPath(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireLock(ctx, lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	old, exists, err := r.current(name)
	if err != nil {
		return fmt.Errorf("update ref %q: read old value: %w", name, err)
	}
	ref, err := next(old, exists)
	if err != nil {
		return err
	}

	content := ref.Target.String()
	if ref.IsSymbolic() {
		content = symbolicPrefix + string(ref.SymbolicTarget)
	}
	if _, err := lockFile.WriteString(content + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if !ref.IsSymbolic() {
		var oldID object.ID
		if exists && !old.IsSymbolic() {
			oldID = old.Target
		}
		if err := r.appendReflog(name, oldID, ref.Target, "update"); err != nil {
			r.logger.WithError(err).WithField("ref", name).Warn("reference updated but reflog append failed")
		}
	}
	return nil
}

// DeleteReference implements storage.RefDB. The reference is removed from
// both loose storage and packed-refs, together with its reflog.
func (r *Refs) DeleteReference(ctx context.Context, name refs.Name) error {
	refPath := r.refPath(name)
	lockPath := refPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("delete ref %q: mkdir: %w", name, err)
	}
	lockFile, err := acquireLock(ctx, lockPath)
	if err != nil {
		return fmt.Errorf("delete ref %q: lock: %w", name, err)
	}
	defer func() {
		_ = lockFile.Close()
		_ = os.Remove(lockPath)
	}()

	_, looseOK, err := r.readLoose(name)
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	packed, err := r.readPacked()
	if err != nil {
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	_, packedOK := packed[name]
	if !looseOK && !packedOK {
		return storage.ReferenceNotFound(string(name))
	}

	if looseOK {
		if err := os.Remove(refPath); err != nil {
			return fmt.Errorf("delete ref %q: %w", name, err)
		}
	}
	if packedOK {
		if err := r.rewritePacked(ctx, name); err != nil {
			return fmt.Errorf("delete ref %q: %w", name, err)
		}
	}
	_ = os.Remove(r.reflogPath(name))
	return nil
}

// rewritePacked drops name from packed-refs.
func (r *Refs) rewritePacked(ctx context.Context, name refs.Name) error {
	r.packedMu.Lock()
	defer r.packedMu.Unlock()

	path := filepath.Join(r.gitDir, packedRefsFile)
	lockFile, err := acquireLock(ctx, path+".lock")
	if err != nil {
		return fmt.Errorf("packed-refs lock: %w", err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(path + ".lock")
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read packed-refs: %w", err)
	}
	var out bytes.Buffer
	skipPeeled := false
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "^") {
			if !skipPeeled {
				out.WriteString(line)
			}
			continue
		}
		skipPeeled = false
		if parts := strings.SplitN(trimmed, " ", 2); len(parts) == 2 && refs.Name(parts[1]) == name {
			skipPeeled = true
			continue
		}
		out.WriteString(line)
	}

	if _, err := lockFile.Write(out.Bytes()); err != nil {
		return fmt.Errorf("write packed-refs: %w", err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("write packed-refs: %w", err)
	}
	lockFile = nil
	if err := os.Rename(path+".lock", path); err != nil {
		return fmt.Errorf("write packed-refs: %w", err)
	}
	cleanupLock = false
	return nil
}

func acquireLock(ctx context.Context, lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(refLockRetryDelay):
		}
	}
}
