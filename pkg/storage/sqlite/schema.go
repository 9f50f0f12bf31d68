package sqlite

const (
	pragmaWAL         = `PRAGMA journal_mode = WAL`
	pragmaBusyTimeout = `PRAGMA busy_timeout = 5000`
	pragmaSynchronous = `PRAGMA synchronous = NORMAL`

	schemaObjects = `
CREATE TABLE IF NOT EXISTS objects (
	id   BLOB PRIMARY KEY,
	kind TEXT NOT NULL,
	data BLOB NOT NULL
) WITHOUT ROWID`

	// Exactly one of target and symbolic is set.
	schemaRefs = `
CREATE TABLE IF NOT EXISTS refs (
	name     TEXT PRIMARY KEY,
	target   BLOB,
	symbolic TEXT,
	CHECK ((target IS NULL) <> (symbolic IS NULL))
) WITHOUT ROWID`
)

func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}

func allSchemaStatements() []string {
	return []string{
		schemaObjects,
		schemaRefs,
	}
}
