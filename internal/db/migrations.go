package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMigration is wrapped into every schema migration failure. Migration
// failures are fatal at startup.
var ErrMigration = errors.New("migration failed")

// migration is a single schema change. Versions are strictly increasing
// and each version is applied at most once, recorded in the
// schema_migrations ledger.
type migration struct {
	version     int64
	description string
	sql         string
}

var migrations = []migration{
	{
		version:     1,
		description: "initial schema",
		sql: `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	email_address TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	provider_type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS folders (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	path TEXT NOT NULL,
	parent_id BIGINT REFERENCES folders (id) ON DELETE CASCADE,
	UNIQUE (account_id, path)
);

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
	folder_id BIGINT NOT NULL REFERENCES folders (id) ON DELETE CASCADE,
	imap_uid BIGINT NOT NULL,
	message_id_header TEXT NOT NULL DEFAULT '',
	from_header TEXT NOT NULL DEFAULT '',
	to_header TEXT NOT NULL DEFAULT '',
	cc_header TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	date TIMESTAMPTZ,
	body_plain TEXT NOT NULL DEFAULT '',
	body_html TEXT NOT NULL DEFAULT '',
	has_attachments BOOLEAN NOT NULL DEFAULT FALSE,
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	search tsvector GENERATED ALWAYS AS (
		to_tsvector('simple',
			coalesce(subject, '') || ' ' ||
			coalesce(from_header, '') || ' ' ||
			coalesce(to_header, '') || ' ' ||
			coalesce(body_plain, ''))
	) STORED,
	UNIQUE (account_id, folder_id, imap_uid)
);

CREATE INDEX IF NOT EXISTS idx_messages_folder ON messages (folder_id);
CREATE INDEX IF NOT EXISTS idx_messages_account ON messages (account_id);
CREATE INDEX IF NOT EXISTS idx_messages_date ON messages (date DESC);
CREATE INDEX IF NOT EXISTS idx_messages_search ON messages USING GIN (search);

CREATE TABLE IF NOT EXISTS attachments (
	id BIGSERIAL PRIMARY KEY,
	message_id BIGINT NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments (message_id);

CREATE TABLE IF NOT EXISTS attachment_blobs (
	attachment_id BIGINT PRIMARY KEY REFERENCES attachments (id) ON DELETE CASCADE,
	data BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
	to_addresses TEXT NOT NULL,
	cc_addresses TEXT NOT NULL DEFAULT '',
	bcc_addresses TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL,
	body_plain TEXT NOT NULL DEFAULT '',
	body_html TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signatures (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	content_html TEXT NOT NULL,
	content_plain TEXT NOT NULL,
	is_default BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`,
	},
	{
		version:     2,
		description: "starring and threading",
		sql: `
ALTER TABLE messages ADD COLUMN IF NOT EXISTS is_starred BOOLEAN NOT NULL DEFAULT FALSE;

CREATE TABLE IF NOT EXISTS threads (
	id BIGSERIAL PRIMARY KEY,
	account_id BIGINT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
	subject_hash TEXT NOT NULL,
	first_message_id BIGINT NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	last_message_id BIGINT NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	message_count BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (account_id, subject_hash)
);

ALTER TABLE messages ADD COLUMN IF NOT EXISTS thread_id BIGINT REFERENCES threads (id) ON DELETE SET NULL;

CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages (thread_id);
CREATE INDEX IF NOT EXISTS idx_messages_starred ON messages (is_starred);
CREATE INDEX IF NOT EXISTS idx_threads_account ON threads (account_id);
`,
	},
	{
		version:     3,
		description: "contacts",
		sql: `
CREATE TABLE IF NOT EXISTS contacts (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	last_used TIMESTAMPTZ NOT NULL,
	use_count BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_contacts_last_used ON contacts (last_used DESC);
`,
	},
}

// Migrate applies all pending migrations in version order. It is safe to
// call repeatedly: already-applied versions are skipped.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: failed to create ledger: %v", ErrMigration, err)
	}

	currentVersion, err := SchemaVersion(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		log.Printf("Applying migration v%d: %s", m.version, m.description)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to begin transaction: %v", ErrMigration, err)
		}

		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%w: v%d (%s): %v", ErrMigration, m.version, m.description, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, description) VALUES ($1, $2)
		`, m.version, m.description); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%w: failed to record v%d: %v", ErrMigration, m.version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("%w: failed to commit v%d: %v", ErrMigration, m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version, or 0 for a
// fresh database.
func SchemaVersion(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	var version int64
	err := pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM schema_migrations
	`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read schema version: %v", ErrMigration, err)
	}
	return version, nil
}
