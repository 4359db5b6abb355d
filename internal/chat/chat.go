// Package chat streams triage conversations through an LLM provider. Every
// conversation starts with the system prompt rendered from the current routing
// document; the caller's history follows unchanged.
package chat

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/linnemanlabs/intake/internal/triage"
)

// Defaults for generation parameters.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Role of a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    Role   `json:"role" validate:"oneof=system user assistant"`
	Content string `json:"content"`
}

// Request is a chat turn submitted by a client: the full history so far.
type Request struct {
	Messages []Message `json:"messages" validate:"min=1,dive"`

	// ConversationID ties related requests together in logs and traces. Generated
	// when empty; must be a UUID when set.
	ConversationID string `json:"-"`
}

// Usage is the token accounting reported by a provider, when it reports any.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Sink receives generated text as it arrives. A non-nil error aborts generation.
type Sink func(delta string) error

// Provider is the interface for any streaming LLM backend.
type Provider interface {
	Name() string
	Model() string
	Stream(ctx context.Context, msgs []Message, sink Sink) (Usage, error)
}

// PromptSource renders the system prompt for the current routing document.
type PromptSource interface {
	BuildSystemPrompt(ctx context.Context) (string, error)
}

var requestValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate checks the request shape and reports every problem as a
// *triage.ValidationError so the API renders it like any other validation failure.
func (r *Request) Validate() error {
	var fields []triage.FieldError

	err := requestValidator.Struct(r)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			path := fe.Namespace()
			if _, rest, ok := strings.Cut(path, "."); ok {
				path = rest
			}
			msg := "Invalid value"
			switch fe.Tag() {
			case "min":
				msg = "At least one message is required"
			case "oneof":
				msg = "Role must be one of: system, user, assistant"
			}
			fields = append(fields, triage.FieldError{Field: path, Message: msg})
		}
	} else if err != nil {
		return err
	}

	if r.ConversationID != "" {
		if _, err := uuid.Parse(r.ConversationID); err != nil {
			fields = append(fields, triage.FieldError{Field: "conversationId", Message: "Conversation ID must be a UUID"})
		}
	}

	if len(fields) > 0 {
		return &triage.ValidationError{Errors: fields}
	}
	return nil
}

// withSystemPrompt returns the provider input: the system prompt first, then history.
func withSystemPrompt(prompt string, history []Message) []Message {
	out := make([]Message, 0, len(history)+1)
	out = append(out, Message{Role: RoleSystem, Content: prompt})
	return append(out, history...)
}

// ProviderError wraps a failure reported by the LLM backend.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
