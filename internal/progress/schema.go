package progress

// CreateFilesTableSQL creates the per-file completion ledger.
// file_name is the source file's base name, stable across runs even when
// the sorted file list grows.
const CreateFilesTableSQL = `
CREATE TABLE IF NOT EXISTS files (
    file_name TEXT PRIMARY KEY,
    file_index INTEGER NOT NULL,
    run_id TEXT NOT NULL,
    status TEXT NOT NULL,
    emitted INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    hip INTEGER NOT NULL DEFAULT 0,
    tyc INTEGER NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    error TEXT
)`

// CreateFilesIndexesSQL creates indexes used by resume queries.
var CreateFilesIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_files_status ON files(status)`,
	`CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id)`,
}
