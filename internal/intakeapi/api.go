// Package intakeapi serves the triage configuration API and the streaming chat
// endpoint.
package intakeapi

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/intake/internal/chat"
	"github.com/linnemanlabs/intake/internal/triage"
)

// ConversationHeader carries the conversation id on chat requests and responses.
const ConversationHeader = "X-Conversation-Id"

// ConfigService defines the triage operations the API needs.
type ConfigService interface {
	GetConfig(ctx context.Context) (*triage.Config, error)
	SaveConfig(ctx context.Context, cfg *triage.Config) (*triage.Config, error)
	AddRule(ctx context.Context, rule triage.Rule) (*triage.Config, error)
	UpdateRule(ctx context.Context, id string, rule triage.Rule) (*triage.Config, error)
	DeleteRule(ctx context.Context, id string) (*triage.Config, error)
	BuildSystemPrompt(ctx context.Context) (string, error)
	Resolve(ctx context.Context, requestType string, facts map[string]string) (*triage.Rule, bool, error)
}

// ChatService streams one assistant reply.
type ChatService interface {
	Stream(ctx context.Context, req *chat.Request, sink chat.Sink) (*chat.Result, error)
}

// Option configures the API.
type Option func(*API)

// WithChat enables POST /api/chat.
func WithChat(svc ChatService) Option {
	return func(a *API) { a.chat = svc }
}

// WithDevMode adds error details to unexpected 500 responses.
func WithDevMode(on bool) Option {
	return func(a *API) { a.devMode = on }
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     ConfigService
	chat    ChatService
	devMode bool
}

// New creates a new API handler.
func New(logger log.Logger, svc ConfigService, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	a := &API{
		logger: logger,
		svc:    svc,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", a.handleGetConfig)
		r.Put("/config", a.handleSaveConfig)
		r.Post("/config/rules", a.handleAddRule)
		r.Put("/config/rules/{id}", a.handleUpdateRule)
		r.Delete("/config/rules/{id}", a.handleDeleteRule)
		r.Post("/config/resolve", a.handleResolve)
		r.Get("/prompt", a.handlePrompt)

		if a.chat != nil {
			r.Post("/chat", a.handleChat)
		}
	})
}
