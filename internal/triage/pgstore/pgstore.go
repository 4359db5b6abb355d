// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/intake/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/intake/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists the routing document as a single jsonb row.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Load reads the stored document. It returns triage.ErrNoConfig when the row does
// not exist yet.
func (s *Store) Load(ctx context.Context) (*triage.Config, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Load", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM triage_config WHERE id = 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, triage.ErrNoConfig
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("select document: %w", err)
	}

	var cfg triage.Config
	if err := json.Unmarshal(doc, &cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	span.SetAttributes(attribute.Int("triage.rules", len(cfg.Rules)))
	return &cfg, nil
}

// Save replaces the stored document. The upsert runs in a transaction, so a failed
// write leaves the previous document in place.
func (s *Store) Save(ctx context.Context, cfg *triage.Config) error {
	ctx, span := tracer.Start(ctx, "pgstore.Save", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
		attribute.Int("triage.rules", len(cfg.Rules)),
	))
	defer span.End()

	doc, err := json.Marshal(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("marshal document: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	_, err = tx.Exec(ctx, `
		INSERT INTO triage_config (id, document, revision, updated_at)
		VALUES (1, $1, 1, now())
		ON CONFLICT (id) DO UPDATE SET
			document   = EXCLUDED.document,
			revision   = triage_config.revision + 1,
			updated_at = now()`,
		doc,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Revision returns how many times the document has been saved, or 0 if never.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.pool.QueryRow(ctx, `SELECT revision FROM triage_config WHERE id = 1`).Scan(&rev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return rev, nil
}
