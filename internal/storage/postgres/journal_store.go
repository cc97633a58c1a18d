// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/paste-resolver/internal/hash/sha256"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

const defaultTable = "resolution_outcomes"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// JournalStoreConfig controls the Postgres connection pool used for outcome rows.
type JournalStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// JournalStore appends resolution outcomes to Postgres. Rows are never read
// back by the service.
type JournalStore struct {
	pool  execCloser
	table string
}

// NewJournalStore creates a Postgres-backed JournalStore using the provided config.
func NewJournalStore(ctx context.Context, cfg JournalStoreConfig) (*JournalStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("journal.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JournalStore{pool: pool, table: table}, nil
}

// NewJournalStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJournalStoreWithPool(pool execCloser, table string) (*JournalStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &JournalStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *JournalStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the journal table when it does not exist yet.
func (s *JournalStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("journal store is not configured")
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	request_id    TEXT NOT NULL,
	url           TEXT NOT NULL,
	adapter_id    TEXT NOT NULL,
	success       BOOLEAN NOT NULL,
	error_kind    TEXT,
	error_step    INTEGER,
	error_message TEXT,
	diagnostic    TEXT,
	resolved_url  TEXT,
	content_bytes INTEGER NOT NULL,
	content_sha256 TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

// Record inserts one outcome row. Content itself is not persisted, only its
// size and digest.
func (s *JournalStore) Record(ctx context.Context, outcome resolver.Outcome) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("journal store is not configured")
	}
	if outcome.RequestID == "" {
		return fmt.Errorf("request id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	request_id,
	url,
	adapter_id,
	success,
	error_kind,
	error_step,
	error_message,
	diagnostic,
	resolved_url,
	content_bytes,
	content_sha256,
	started_at,
	duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, s.table)

	var (
		kind, message, diagnostic *string
		step                      *int
	)
	if e := outcome.Err; e != nil {
		k := e.Code()
		m := e.Error()
		kind, message = &k, &m
		if e.Diagnostic != "" {
			d := e.Diagnostic
			diagnostic = &d
		}
		if e.Step >= 0 {
			st := e.Step
			step = &st
		}
	}
	var digest *string
	if d := sha256.Content(outcome.Content); d != "" {
		digest = &d
	}
	var resolvedURL *string
	if outcome.ResolvedURL != "" {
		r := outcome.ResolvedURL
		resolvedURL = &r
	}

	args := []any{
		outcome.RequestID,
		outcome.URL,
		outcome.AdapterID,
		outcome.Success,
		kind,
		step,
		message,
		diagnostic,
		resolvedURL,
		len(outcome.Content),
		digest,
		outcome.StartedAt.UTC(),
		outcome.Duration.Milliseconds(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}
