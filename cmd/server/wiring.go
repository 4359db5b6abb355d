package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/linnemanlabs/go-core/log"

	ic "github.com/linnemanlabs/intake/internal/cfg"
	"github.com/linnemanlabs/intake/internal/chat"
	"github.com/linnemanlabs/intake/internal/llm/claude"
	"github.com/linnemanlabs/intake/internal/llm/openai"
	"github.com/linnemanlabs/intake/internal/postgres"
	"github.com/linnemanlabs/intake/internal/triage"
	"github.com/linnemanlabs/intake/internal/triage/filestore"
	"github.com/linnemanlabs/intake/internal/triage/memstore"
	"github.com/linnemanlabs/intake/internal/triage/pgstore"
)

// newProvider builds the configured chat provider.
func newProvider(c *ic.Config) (chat.Provider, error) {
	switch c.LLMProvider {
	case ic.ProviderClaude:
		p, err := claude.New(claude.Config{
			APIKey:      c.ClaudeAPIKey,
			Model:       c.ClaudeModel,
			MaxTokens:   int64(c.MaxTokens),
			Temperature: c.Temperature,
			MaxRetries:  c.LLMMaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case ic.ProviderOpenAI:
		p, err := openai.New(openai.Config{
			APIKey:      c.OpenAIAPIKey,
			Model:       c.OpenAIModel,
			BaseURL:     c.OpenAIBaseURL,
			MaxTokens:   int64(c.MaxTokens),
			Temperature: c.Temperature,
			MaxRetries:  c.LLMMaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", c.LLMProvider)
}

// newStore opens the configured document backend. The returned close func is
// never nil.
func newStore(ctx context.Context, c *ic.Config, L log.Logger) (triage.Store, func(), error) {
	noop := func() {}

	switch c.Storage {
	case ic.StorageMemory:
		L.Info(ctx, "using in-memory triage store")
		return memstore.New(nil), noop, nil

	case ic.StorageFile:
		fs, err := filestore.New(c.ConfigPath)
		if err != nil {
			return nil, noop, fmt.Errorf("filestore init: %w", err)
		}
		L.Info(ctx, "using file triage store", "path", fs.Path())
		return fs, noop, nil

	case ic.StoragePostgres:
		pool, err := postgres.NewPool(ctx, c.DatabaseURL, postgres.PoolOptions{
			MaxConns:  int32(c.DBMaxConns), //nolint:gosec // bounded by cfg validation
			SlowQuery: time.Duration(c.SlowQueryMS) * time.Millisecond,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("postgres pool: %w", err)
		}
		pg, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("pgstore init: %w", err)
		}
		L.Info(ctx, "using postgres triage store")
		return pg, closePool(pool), nil
	}
	return nil, noop, fmt.Errorf("unknown storage backend %q", c.Storage)
}

func closePool(pool *pgxpool.Pool) func() {
	return func() { pool.Close() }
}

// seedDocument is served until a document has been saved.
func seedDocument(c *ic.Config) *triage.Config {
	if !c.SeedOnStartup {
		return nil
	}
	return triage.DefaultConfig()
}

// logSummary reports what the loaded document contains. A failure is logged, not
// fatal: the API stays up so the document can be fixed through it.
func logSummary(ctx context.Context, svc *triage.Service, m *triage.Metrics, L log.Logger) {
	types, fields, rules, err := svc.Summary(ctx)
	if err != nil {
		L.Error(ctx, err, "failed to load triage configuration on startup")
		return
	}
	m.Rules.Set(float64(rules))
	L.Info(ctx, "triage configuration loaded",
		"request_types", types,
		"condition_fields", fields,
		"rules", rules,
	)
}
