package cfg

import (
	"errors"
	"flag"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// LLM providers.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Storage backends for the triage document.
const (
	StorageFile     = "file"
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DevMode               bool

	LLMProvider   string
	ClaudeAPIKey  string
	ClaudeModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	MaxTokens     int
	Temperature   float64
	LLMMaxRetries int

	Storage       string
	ConfigPath    string
	DatabaseURL   string
	DBMaxConns    int
	SlowQueryMS   int
	SeedOnStartup bool

	Organization    string
	FallbackContact string
	SlackWebhookURL string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8999, "API listen TCP port (1..65535)")
	fs.BoolVar(&c.DevMode, "dev-mode", false, "include error details in 500 responses")

	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderOpenAI, "chat LLM provider (claude|openai)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI LLM provider")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "base URL for an OpenAI-compatible API (empty = api.openai.com)")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini", "OpenAI model to use")
	fs.IntVar(&c.MaxTokens, "max-tokens", 1000, "maximum tokens per assistant reply (1..100000)")
	fs.Float64Var(&c.Temperature, "temperature", 0.7, "sampling temperature (0..2)")
	fs.IntVar(&c.LLMMaxRetries, "llm-max-retries", 2, "retries for failed LLM requests before streaming starts (0..10)")

	fs.StringVar(&c.Storage, "storage", StorageFile, "triage config storage backend (file|memory|postgres)")
	fs.StringVar(&c.ConfigPath, "config-path", "data/triage-config.json", "path of the triage config document for the file backend")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for the postgres backend")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 4, "maximum PostgreSQL pool connections")
	fs.IntVar(&c.SlowQueryMS, "slow-query-ms", 200, "log database queries slower than this many milliseconds")
	fs.BoolVar(&c.SeedOnStartup, "seed", true, "serve the built-in default document until one is saved")

	fs.StringVar(&c.Organization, "organization", "Acme Corp", "organization named in the assistant prompt")
	fs.StringVar(&c.FallbackContact, "fallback-contact", "legal@acme.corp", "contact used when no triage rule matches")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for configuration change notifications")
}

var validate = validator.New()

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// provider credentials
	switch c.LLMProvider {
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required"))
		}
		if c.OpenAIBaseURL != "" {
			if err := validate.Var(c.OpenAIBaseURL, "http_url"); err != nil {
				errs = append(errs, fmt.Errorf("invalid OPENAI_BASE_URL %q (must be an http(s) URL)", c.OpenAIBaseURL))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude or openai)", c.LLMProvider))
	}

	// generation parameters
	if c.MaxTokens <= 0 || c.MaxTokens > 100000 {
		errs = append(errs, fmt.Errorf("invalid MAX_TOKENS %d (must be 1..100000)", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("invalid TEMPERATURE %v (must be 0..2)", c.Temperature))
	}
	if c.LLMMaxRetries < 0 || c.LLMMaxRetries > 10 {
		errs = append(errs, fmt.Errorf("invalid LLM_MAX_RETRIES %d (must be 0..10)", c.LLMMaxRetries))
	}

	// storage backend and its location
	switch c.Storage {
	case StorageFile:
		if c.ConfigPath == "" {
			errs = append(errs, errors.New("CONFIG_PATH is required for file storage"))
		}
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
		if c.DBMaxConns <= 0 || c.DBMaxConns > 100 {
			errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be 1..100)", c.DBMaxConns))
		}
		if c.SlowQueryMS < 0 {
			errs = append(errs, fmt.Errorf("invalid SLOW_QUERY_MS %d (must be >= 0)", c.SlowQueryMS))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE %q (must be file, memory or postgres)", c.Storage))
	}

	// prompt identity
	if c.Organization == "" {
		errs = append(errs, errors.New("ORGANIZATION is required"))
	}
	if err := validate.Var(c.FallbackContact, "required,email"); err != nil {
		errs = append(errs, fmt.Errorf("invalid FALLBACK_CONTACT %q (must be an email address)", c.FallbackContact))
	}
	if c.SlackWebhookURL != "" {
		if err := validate.Var(c.SlackWebhookURL, "http_url"); err != nil {
			errs = append(errs, fmt.Errorf("invalid SLACK_WEBHOOK_URL %q (must be an http(s) URL)", c.SlackWebhookURL))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
