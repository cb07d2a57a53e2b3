package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend is the persistent surface, stored in client_tokens.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend returns a pgx-backed implementation.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (p *PostgresBackend) Get(ctx context.Context, key string) (string, error) {
	if p == nil || p.pool == nil {
		return "", ErrUnavailable
	}
	const query = `
        SELECT value FROM client_tokens
        WHERE key=$1 AND (expires_at IS NULL OR expires_at > NOW())`

	var value string
	if err := p.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (p *PostgresBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if p == nil || p.pool == nil {
		return ErrUnavailable
	}
	const query = `
        INSERT INTO client_tokens (key, value, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, expires_at=EXCLUDED.expires_at, updated_at=NOW()`

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := p.pool.Exec(ctx, query, key, value, expiresAt)
	return err
}

func (p *PostgresBackend) Delete(ctx context.Context, keys ...string) error {
	if p == nil || p.pool == nil {
		return ErrUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	const query = `DELETE FROM client_tokens WHERE key = ANY($1)`
	_, err := p.pool.Exec(ctx, query, keys)
	return err
}
