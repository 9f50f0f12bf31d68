package loose

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
)

// reflogIdentity is written in place of a committer, since reference
// updates carry no author.
const reflogIdentity = "gitobj <gitobj@localhost>"

// ReflogEntry is one line of a reference's log.
type ReflogEntry struct {
	Ref       refs.Name
	Old       object.ID
	New       object.ID
	Timestamp int64
	Reason    string
}

func (r *Refs) reflogPath(name refs.Name) string {
	return filepath.Join(r.gitDir, "logs", filepath.FromSlash(string(name)))
}

// appendReflog writes a line in git's reflog format:
//
//	<old> <new> <identity> <unix> <tz>\t<reason>
func (r *Refs) appendReflog(name refs.Name, oldID, newID object.ID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}

	logPath := r.reflogPath(name)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	line := fmt.Sprintf("%s %s %s %d +0000\t%s\n", oldID, newID, reflogIdentity, time.Now().Unix(), reason)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// ReadReflog returns the log of name, newest first. A non-positive limit
// returns every entry. Missing logs yield no entries.
func (r *Refs) ReadReflog(name refs.Name, limit int) ([]ReflogEntry, error) {
	f, err := os.Open(r.reflogPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, ok := parseReflogLine(name, line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func parseReflogLine(name refs.Name, line string) (ReflogEntry, bool) {
	head, reason, _ := strings.Cut(line, "\t")
	fields := strings.Fields(head)
	// old new <identity...> unix tz
	if len(fields) < 5 {
		return ReflogEntry{}, false
	}
	oldID, err := object.ParseID(fields[0])
	if err != nil {
		return ReflogEntry{}, false
	}
	newID, err := object.ParseID(fields[1])
	if err != nil {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(fields[len(fields)-2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{Ref: name, Old: oldID, New: newID, Timestamp: ts, Reason: reason}, true
}
