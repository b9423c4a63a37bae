// Package postgres is the durable Store backend. A single table,
// kv_entries, keyed by (namespace, id), satisfies the "{namespace}:{id}"
// addressing contract directly; `set` is one INSERT ... ON CONFLICT DO
// UPDATE statement, which Postgres's own WAL makes atomic — the concrete
// implementation of §4.1's "write-to-temp + rename, or equivalent
// transactional primitive" for a relational backend.
package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/r3e-network/intent-solver/internal/solvererr"
	"github.com/r3e-network/intent-solver/internal/storage"
)

// Store adapts a *sqlx.DB to storage.Store.
type Store struct {
	db *sqlx.DB
}

// New wraps an already-open *sql.DB (see Open) with sqlx and returns a
// ready-to-use Store. Callers must run ApplyMigrations first.
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func splitKey(key string) (namespace, id string, ok bool) {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	namespace, id, ok := splitKey(key)
	if !ok {
		return nil, solvererr.New(solvererr.KindBackend, "postgres.Get", "malformed key: "+key)
	}

	var value []byte
	var expiresAt sql.NullTime
	const q = `SELECT value, expires_at FROM kv_entries WHERE namespace = $1 AND id = $2`
	row := s.db.QueryRowxContext(ctx, q, namespace, id)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, solvererr.New(solvererr.KindNotFound, "postgres.Get", "key not found: "+key)
		}
		return nil, solvererr.Wrap(solvererr.KindBackend, "postgres.Get", err)
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE namespace = $1 AND id = $2`, namespace, id)
		return nil, solvererr.New(solvererr.KindNotFound, "postgres.Get", "key expired: "+key)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	namespace, id, ok := splitKey(key)
	if !ok {
		return solvererr.New(solvererr.KindBackend, "postgres.Set", "malformed key: "+key)
	}

	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}

	const q = `
		INSERT INTO kv_entries (namespace, id, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (namespace, id) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`
	if _, err := s.db.ExecContext(ctx, q, namespace, id, value, expiresAt); err != nil {
		return solvererr.Wrap(solvererr.KindBackend, "postgres.Set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	namespace, id, ok := splitKey(key)
	if !ok {
		return solvererr.New(solvererr.KindBackend, "postgres.Delete", "malformed key: "+key)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE namespace = $1 AND id = $2`, namespace, id); err != nil {
		return solvererr.Wrap(solvererr.KindBackend, "postgres.Delete", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	namespace, id, ok := splitKey(key)
	if !ok {
		return false, solvererr.New(solvererr.KindBackend, "postgres.Exists", "malformed key: "+key)
	}
	const q = `SELECT 1 FROM kv_entries WHERE namespace = $1 AND id = $2 AND (expires_at IS NULL OR expires_at > now())`
	var dummy int
	err := s.db.QueryRowxContext(ctx, q, namespace, id).Scan(&dummy)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, solvererr.Wrap(solvererr.KindBackend, "postgres.Exists", err)
	default:
		return true, nil
	}
}

func (s *Store) ScanStatus(ctx context.Context) ([]storage.StatusEntry, error) {
	const q = `SELECT id, value FROM kv_entries WHERE namespace = $1 AND (expires_at IS NULL OR expires_at > now())`
	rows, err := s.db.QueryxContext(ctx, q, storage.NamespaceStatus)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindBackend, "postgres.ScanStatus", err)
	}
	defer rows.Close()

	out := make([]storage.StatusEntry, 0)
	for rows.Next() {
		var e storage.StatusEntry
		if err := rows.Scan(&e.OrderID, &e.Value); err != nil {
			return nil, solvererr.Wrap(solvererr.KindBackend, "postgres.ScanStatus", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ storage.Store = (*Store)(nil)
