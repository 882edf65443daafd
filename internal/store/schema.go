package store

// schema_version is a single-row table checked on every open; an unknown
// version aborts rather than guessing at a migration.
const schemaVersionV1 = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS debates (
	id                  TEXT PRIMARY KEY,
	fingerprint         TEXT NOT NULL,
	topic               TEXT NOT NULL,
	request_payload     TEXT NOT NULL,
	consensus_payload   TEXT NOT NULL,
	consensus_score     INTEGER NOT NULL,
	recommendation      TEXT NOT NULL,
	created_at          TEXT NOT NULL,
	outcome_confirmed   INTEGER,
	outcome_notes       TEXT,
	outcome_recorded_at TEXT,
	supersedes_id       TEXT
);

CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_debates_fingerprint ON debates(fingerprint);
`
