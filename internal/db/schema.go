package db

import (
	"context"
	"fmt"
	"strconv"
)

// Schema version for migrations
const SchemaVersion = 1

var schemaTables = []struct {
	name string
	ddl  string
}{
	{"cb_projects", `
	CREATE TABLE IF NOT EXISTS cb_projects (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		created_by  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_active   BOOLEAN NOT NULL DEFAULT TRUE
	)`},
	{"cb_agents", `
	CREATE TABLE IF NOT EXISTS cb_agents (
		id                TEXT PRIMARY KEY,
		project_id        TEXT NOT NULL REFERENCES cb_projects(id),
		name              TEXT NOT NULL,
		prompt            TEXT NOT NULL,
		voice_settings    JSONB NOT NULL DEFAULT '{}',
		behavior_settings JSONB NOT NULL DEFAULT '{}',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_active         BOOLEAN NOT NULL DEFAULT TRUE
	)`},
	{"cb_contacts", `
	CREATE TABLE IF NOT EXISTS cb_contacts (
		id           TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL REFERENCES cb_projects(id),
		name         TEXT NOT NULL,
		phone_number TEXT NOT NULL,
		email        TEXT,
		notes        TEXT,
		tags         TEXT[] NOT NULL DEFAULT '{}',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"cb_campaigns", `
	CREATE TABLE IF NOT EXISTS cb_campaigns (
		id            TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL REFERENCES cb_projects(id),
		ai_agent_id   TEXT REFERENCES cb_agents(id),
		name          TEXT NOT NULL,
		description   TEXT,
		campaign_type TEXT NOT NULL DEFAULT 'individual',
		status        TEXT NOT NULL DEFAULT 'pending',
		scheduled_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"cb_calls", `
	CREATE TABLE IF NOT EXISTS cb_calls (
		id               TEXT PRIMARY KEY,
		project_id       TEXT NOT NULL REFERENCES cb_projects(id),
		campaign_id      TEXT REFERENCES cb_campaigns(id) ON DELETE SET NULL,
		contact_id       TEXT REFERENCES cb_contacts(id) ON DELETE SET NULL,
		ai_agent_id      TEXT REFERENCES cb_agents(id),
		room_name        TEXT,
		call_type        TEXT NOT NULL DEFAULT 'outbound',
		phone_number     TEXT NOT NULL,
		call_status      TEXT NOT NULL DEFAULT 'initiated',
		started_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		answered_at      TIMESTAMPTZ,
		ended_at         TIMESTAMPTZ,
		duration_seconds INTEGER,
		sentiment_score  DOUBLE PRECISION,
		call_summary     TEXT,
		call_outcome     TEXT,
		key_points       TEXT[] NOT NULL DEFAULT '{}',
		action_items     TEXT[] NOT NULL DEFAULT '{}',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	// id is a ULID so the log orders by insertion without a sequence.
	{"cb_action_log", `
	CREATE TABLE IF NOT EXISTS cb_action_log (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		record_id  TEXT NOT NULL,
		op         TEXT NOT NULL,
		from_state TEXT,
		to_state   TEXT,
		actor      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"cb_metadata", `
	CREATE TABLE IF NOT EXISTS cb_metadata (
		key     TEXT PRIMARY KEY,
		value   TEXT NOT NULL
	)`},
}

var schemaIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_projects_owner ON cb_projects(created_by, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_agents_project ON cb_agents(project_id)",
	"CREATE INDEX IF NOT EXISTS idx_contacts_project ON cb_contacts(project_id)",
	"CREATE INDEX IF NOT EXISTS idx_campaigns_project ON cb_campaigns(project_id, status)",
	"CREATE INDEX IF NOT EXISTS idx_calls_project ON cb_calls(project_id, started_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_calls_campaign ON cb_calls(campaign_id, call_status)",
	"CREATE INDEX IF NOT EXISTS idx_action_log_record ON cb_action_log(kind, record_id)",
}

// InitSchema creates the callboard tables, respecting foreign key order,
// and records the schema version.
func (db *DB) InitSchema(ctx context.Context) error {
	for _, t := range schemaTables {
		if err := db.Exec(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", t.name, err)
		}
	}
	for _, idx := range schemaIndexes {
		if err := db.Exec(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return db.SetMetadata(ctx, MetaKeySchemaVersion, strconv.Itoa(SchemaVersion))
}

// SchemaExists checks if the callboard schema exists
func (db *DB) SchemaExists(ctx context.Context) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'cb_calls'
		)
	`).Scan(&exists)
	return exists, err
}

// DropSchema drops all callboard tables (use with caution!)
func (db *DB) DropSchema(ctx context.Context) error {
	for i := len(schemaTables) - 1; i >= 0; i-- {
		name := schemaTables[i].name
		if err := db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", name)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", name, err)
		}
	}
	return nil
}
