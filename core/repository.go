package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgKV implements KVStore on a two-column postgres table.
type PgKV struct {
	db    *pgxpool.Pool
	table string
}

func NewPgKV(db *pgxpool.Pool) *PgKV {
	return &PgKV{db: db, table: "console_kv"}
}

// EnsureSchema creates the backing table when missing.
func (r *PgKV) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+r.table+` (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	return err
}

func (r *PgKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRow(ctx, `SELECT value FROM `+r.table+` WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *PgKV) Set(ctx context.Context, key, value string) error {
	q := `INSERT INTO ` + r.table + ` (key, value) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err := r.db.Exec(ctx, q, key, value)
	return err
}

// Delete removes all keys in one statement.
func (r *PgKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM `+r.table+` WHERE key = ANY($1)`, keys)
	return err
}

func (r *PgKV) Close() error {
	r.db.Close()
	return nil
}
