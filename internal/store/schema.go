package store

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order; user_version tracks progress.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	source_id  TEXT PRIMARY KEY,
	offset     INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS slot_states (
	page       INTEGER NOT NULL,
	slot       INTEGER NOT NULL,
	item       INTEGER NOT NULL,
	count      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (page, slot)
);

CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	uid        TEXT NOT NULL UNIQUE,
	character  TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	ended_at   INTEGER,
	zone_sig   TEXT NOT NULL,
	zone_name  TEXT NOT NULL,
	level_id   INTEGER NOT NULL DEFAULT 0,
	UNIQUE (zone_sig, started_at, character)
);

CREATE TABLE IF NOT EXISTS deltas (
	run_id  INTEGER,
	ts      INTEGER NOT NULL,
	page    INTEGER NOT NULL,
	slot    INTEGER NOT NULL,
	item    INTEGER NOT NULL,
	delta   INTEGER NOT NULL,
	context TEXT NOT NULL,
	line    TEXT NOT NULL DEFAULT '',
	offset  INTEGER NOT NULL,
	UNIQUE (ts, offset, page, slot, item, delta)
);
CREATE INDEX IF NOT EXISTS idx_deltas_run ON deltas (run_id);
CREATE INDEX IF NOT EXISTS idx_deltas_item_ts ON deltas (item, ts);

CREATE TABLE IF NOT EXISTS learned_prices (
	item       INTEGER PRIMARY KEY,
	price      REAL NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS remote_prices (
	item         INTEGER PRIMARY KEY,
	price        REAL NOT NULL,
	updated_at   INTEGER NOT NULL,
	contributors INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_submissions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	item         INTEGER NOT NULL,
	price        REAL NOT NULL,
	observed_at  INTEGER NOT NULL,
	submitted_at INTEGER
);
`,
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
