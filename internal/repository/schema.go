package repository

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id                TEXT PRIMARY KEY,
		document_id       TEXT NOT NULL,
		source            TEXT NOT NULL DEFAULT '',
		page_index        INTEGER NOT NULL DEFAULT 0,
		content_hash      TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		stage             TEXT NOT NULL DEFAULT '',
		error_kind        TEXT NOT NULL DEFAULT '',
		error_message     TEXT NOT NULL DEFAULT '',
		extraction_method TEXT NOT NULL DEFAULT '',
		order_id          TEXT NOT NULL DEFAULT '',
		idempotency_key   TEXT NOT NULL DEFAULT '',
		error_count       INTEGER NOT NULL DEFAULT 0,
		warning_count     INTEGER NOT NULL DEFAULT 0,
		payload           TEXT NOT NULL DEFAULT '',
		report            TEXT NOT NULL DEFAULT '',
		diagnostics       TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_idempotency_key_idx ON runs (idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS runs_content_hash_idx ON runs (content_hash, page_index)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id                TEXT PRIMARY KEY,
		document_id       TEXT NOT NULL,
		source            TEXT NOT NULL DEFAULT '',
		page_index        INTEGER NOT NULL DEFAULT 0,
		content_hash      TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		stage             TEXT NOT NULL DEFAULT '',
		error_kind        TEXT NOT NULL DEFAULT '',
		error_message     TEXT NOT NULL DEFAULT '',
		extraction_method TEXT NOT NULL DEFAULT '',
		order_id          TEXT NOT NULL DEFAULT '',
		idempotency_key   TEXT NOT NULL DEFAULT '',
		error_count       INTEGER NOT NULL DEFAULT 0,
		warning_count     INTEGER NOT NULL DEFAULT 0,
		payload           TEXT NOT NULL DEFAULT '',
		report            TEXT NOT NULL DEFAULT '',
		diagnostics       TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_idempotency_key_idx ON runs (idempotency_key)`,
	`CREATE INDEX IF NOT EXISTS runs_content_hash_idx ON runs (content_hash, page_index)`,
}
