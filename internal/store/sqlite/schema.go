package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	`CREATE TABLE users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE auth_tokens (
		token_hash TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TEXT,
		revoked_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX idx_auth_tokens_user ON auth_tokens(user_id);`,

	`CREATE TABLE meetings (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL DEFAULT '',
		host_id          TEXT NOT NULL REFERENCES users(id),
		password_hash    TEXT NOT NULL DEFAULT '',
		max_participants INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		ended_at         TEXT
	);
	CREATE TABLE meeting_participants (
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		conn_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		role       TEXT NOT NULL,
		joined_at  TEXT NOT NULL,
		left_at    TEXT,
		PRIMARY KEY (meeting_id, conn_id)
	);`,

	`CREATE TABLE chat_messages (
		id          TEXT PRIMARY KEY,
		room        TEXT NOT NULL,
		sender_id   TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX idx_chat_messages_room ON chat_messages(room, created_at);`,
}

// Migrate brings the schema up to date. It is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this binary (%d)", current, len(migrations))
	}
	for v := current; v < len(migrations); v++ {
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
				return fmt.Errorf("migration %d: %w", v+1, err)
			}
			// user_version does not take bind parameters.
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
				return fmt.Errorf("set schema version %d: %w", v+1, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Info().Str("module", "store").Int("version", v+1).Msg("migration applied")
	}
	return nil
}

// Version reports the applied schema version.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}
