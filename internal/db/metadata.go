package db

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Metadata keys
const (
	MetaKeySchemaVersion = "schema_version"
	MetaKeySeededAt      = "seeded_at"
)

// GetMetadata retrieves a metadata value by key
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRow(ctx, "SELECT value FROM cb_metadata WHERE key = $1", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair (upsert)
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	return db.Exec(ctx, `
		INSERT INTO cb_metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
}

// InstalledSchemaVersion returns the recorded schema version, 0 when the
// schema was never initialized.
func (db *DB) InstalledSchemaVersion(ctx context.Context) (int, error) {
	v, err := db.GetMetadata(ctx, MetaKeySchemaVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}
