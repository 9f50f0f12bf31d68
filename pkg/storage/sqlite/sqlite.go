// Package sqlite implements a single-file storage engine: objects and
// references live in two tables of a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/gitobj/pkg/object"
	"github.com/odvcencio/gitobj/pkg/refs"
	"github.com/odvcencio/gitobj/pkg/storage"
	_ "modernc.org/sqlite"
)

// Open opens or creates the database at path (":memory:" for a transient
// one). A fresh database gets HEAD pointing at refs/heads/<defaultBranch>.
func Open(ctx context.Context, path, defaultBranch string) (*storage.DB, error) {
	if err := refs.ValidateShortName(defaultBranch); err != nil {
		return nil, fmt.Errorf("open sqlite: default branch: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes
	// reference transactions.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	head := string(refs.BranchName(defaultBranch))
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO refs (name, target, symbolic) VALUES (?, NULL, ?)`,
		string(refs.HEAD), head,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing HEAD: %w", err)
	}

	return storage.New(&Objects{db: db}, &Refs{db: db}, db), nil
}

// Objects stores objects in the objects table.
type Objects struct {
	db *sql.DB
}

var _ storage.ObjectDB = (*Objects)(nil)

// ReadObject implements storage.ObjectDB.
func (o *Objects) ReadObject(ctx context.Context, id object.ID) (object.Type, []byte, error) {
	var kind string
	var data []byte
	err := o.db.QueryRowContext(ctx, `SELECT kind, data FROM objects WHERE id = ?`, id.Bytes()).Scan(&kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, storage.ObjectNotFound(id)
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying object %s: %w", id, err)
	}
	t, err := object.ParseType(kind)
	if err != nil {
		return "", nil, fmt.Errorf("object %s: %w", id, err)
	}
	if data == nil {
		data = []byte{}
	}
	return t, data, nil
}

// HasObject implements storage.ObjectDB.
func (o *Objects) HasObject(ctx context.Context, id object.ID) (bool, error) {
	var one int
	err := o.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE id = ?`, id.Bytes()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying object %s: %w", id, err)
	}
	return true, nil
}

// WriteObject implements storage.ObjectDB.
func (o *Objects) WriteObject(ctx context.Context, kind object.Type, data []byte) (object.ID, error) {
	if _, err := object.ParseType(string(kind)); err != nil {
		return object.ZeroID, fmt.Errorf("inserting object: %w", err)
	}
	id := object.HashObject(kind, data)
	if data == nil {
		data = []byte{}
	}
	if _, err := o.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO objects (id, kind, data) VALUES (?, ?, ?)`,
		id.Bytes(), string(kind), data,
	); err != nil {
		return object.ZeroID, fmt.Errorf("inserting object %s: %w", id, err)
	}
	return id, nil
}

// Refs stores references in the refs table.
type Refs struct {
	db *sql.DB
}

var _ storage.RefDB = (*Refs)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReference(row rowScanner) (refs.Reference, error) {
	var name string
	var target []byte
	var symbolic sql.NullString
	if err := row.Scan(&name, &target, &symbolic); err != nil {
		return refs.Reference{}, err
	}
	if symbolic.Valid {
		return refs.NewSymbolicReference(refs.Name(name), refs.Name(symbolic.String)), nil
	}
	id, err := object.IDFromBytes(target)
	if err != nil {
		return refs.Reference{}, fmt.Errorf("reference %q: %w", name, err)
	}
	return refs.NewReference(refs.Name(name), id), nil
}

// ReadReference implements storage.RefDB.
func (r *Refs) ReadReference(ctx context.Context, name refs.Name) (refs.Reference, error) {
	row := r.db.QueryRowContext(ctx, `SELECT name, target, symbolic FROM refs WHERE name = ?`, string(name))
	ref, err := scanReference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return refs.Reference{}, storage.ReferenceNotFound(string(name))
	}
	if err != nil {
		return refs.Reference{}, fmt.Errorf("querying reference %q: %w", name, err)
	}
	return ref, nil
}

// ListReferences implements storage.RefDB.
func (r *Refs) ListReferences(ctx context.Context, prefix string) ([]refs.Reference, error) {
	query := `SELECT name, target, symbolic FROM refs ORDER BY name`
	var args []any
	if prefix != "" {
		// MatchPrefix below does the exact filtering; LIKE only narrows.
		query = `SELECT name, target, symbolic FROM refs WHERE name LIKE ? ESCAPE '\' ORDER BY name`
		args = append(args, escapeLike(prefix)+"%")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	defer rows.Close()

	var out []refs.Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reference: %w", err)
		}
		if storage.MatchPrefix(ref.Name, prefix) {
			out = append(out, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func referenceArgs(ref refs.Reference) (any, any) {
	if ref.IsSymbolic() {
		return nil, string(ref.SymbolicTarget)
	}
	return ref.Target.Bytes(), nil
}

// SetReference implements storage.RefDB.
func (r *Refs) SetReference(ctx context.Context, ref refs.Reference) error {
	target, symbolic := referenceArgs(ref)
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO refs (name, target, symbolic) VALUES (?, ?, ?)`,
		string(ref.Name), target, symbolic,
	); err != nil {
		return fmt.Errorf("setting reference %q: %w", ref.Name, err)
	}
	return nil
}

// CompareAndSwapReference implements storage.RefDB inside one transaction.
func (r *Refs) CompareAndSwapReference(ctx context.Context, name refs.Name, newID, expectedOld object.ID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT name, target, symbolic FROM refs WHERE name = ?`, string(name))
	cur, err := scanReference(row)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("querying reference %q: %w", name, err)
	}

	switch {
	case expectedOld.IsZero() && exists:
		return fmt.Errorf("update ref %q: %w (expected absent, found %s)", name, storage.ErrRefConflict, cur)
	case !expectedOld.IsZero() && !exists:
		return fmt.Errorf("update ref %q: %w (expected %s, found none)", name, storage.ErrRefConflict, expectedOld)
	case !expectedOld.IsZero() && (cur.IsSymbolic() || cur.Target != expectedOld):
		return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, storage.ErrRefConflict, expectedOld, cur)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO refs (name, target, symbolic) VALUES (?, ?, NULL)`,
		string(name), newID.Bytes(),
	); err != nil {
		return fmt.Errorf("updating reference %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reference %q: %w", name, err)
	}
	return nil
}

// DeleteReference implements storage.RefDB.
func (r *Refs) DeleteReference(ctx context.Context, name refs.Name) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refs WHERE name = ?`, string(name))
	if err != nil {
		return fmt.Errorf("deleting reference %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting reference %q: %w", name, err)
	}
	if n == 0 {
		return storage.ReferenceNotFound(string(name))
	}
	return nil
}
