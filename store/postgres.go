package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// PostgresStore keeps viewer state in the viewer_state table, one row per
// (profile, key). Profiles let several viewer instances share one database.
type PostgresStore struct {
	DB      *sql.DB
	Profile string
}

// Connect opens a Postgres connection using the pgx stdlib driver.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn empty")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for the viewer_state table.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS viewer_state (
			profile TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (profile, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_viewer_state_updated ON viewer_state(updated_at)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := p.DB.QueryRowContext(ctx, `SELECT value FROM viewer_state WHERE profile=$1 AND key=$2`, p.Profile, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO viewer_state (profile, key, value, updated_at) VALUES ($1,$2,$3,NOW())
		 ON CONFLICT (profile, key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		p.Profile, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM viewer_state WHERE profile=$1 AND key=$2`, p.Profile, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
