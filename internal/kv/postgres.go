package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a single Postgres table. It is the
// durable alternative to the Redis backend; prefix listing maps to an
// indexed LIKE scan. Expired rows are filtered on read and reaped lazily.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the backing table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv_entries (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			metadata   JSONB,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure kv schema: %w", err)
	}
	return nil
}

// Get returns the value stored at key, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, ns Namespace, key string) (string, error) {
	var value string
	query := `
		SELECT value FROM kv_entries
		WHERE namespace = $1 AND key = $2
		  AND (expires_at IS NULL OR expires_at > NOW())
	`
	err := s.pool.QueryRow(ctx, query, string(ns), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, nil
}

// Put upserts value at key with optional metadata and TTL.
func (s *PostgresStore) Put(ctx context.Context, ns Namespace, key, value string, opts *PutOptions) error {
	var metadata []byte
	var expiresAt *time.Time
	if opts != nil {
		if len(opts.Metadata) > 0 {
			var err error
			metadata, err = json.Marshal(opts.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", key, err)
			}
		}
		if opts.ExpirationTTL > 0 {
			t := time.Now().Add(opts.ExpirationTTL)
			expiresAt = &t
		}
	}

	query := `
		INSERT INTO kv_entries (namespace, key, value, metadata, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (namespace, key) DO UPDATE
		SET value = EXCLUDED.value, metadata = EXCLUDED.metadata,
		    expires_at = EXCLUDED.expires_at, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, string(ns), key, value, metadata, expiresAt); err != nil {
		return fmt.Errorf("postgres put %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, ns Namespace, key string) error {
	query := `DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`
	if _, err := s.pool.Exec(ctx, query, string(ns), key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// escapeLikePrefix escapes LIKE metacharacters so a caller-derived
// prefix matches literally. Keys embed email addresses, and `_` is
// legal in an email local part.
func escapeLikePrefix(prefix string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
}

// List returns non-expired entries whose key starts with the prefix,
// sorted by key. A non-positive limit means no limit.
func (s *PostgresStore) List(ctx context.Context, ns Namespace, opts ListOptions) ([]Entry, error) {
	query := `
		SELECT key, value FROM kv_entries
		WHERE namespace = $1 AND key LIKE $2 ESCAPE '\'
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY key
	`
	args := []interface{}{string(ns), escapeLikePrefix(opts.Prefix) + "%"}
	if opts.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres list %s: %w", opts.Prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
