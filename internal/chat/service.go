package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
)

var tracer = otel.Tracer("github.com/linnemanlabs/intake/internal/chat")

// Result describes a finished (or aborted) stream.
type Result struct {
	ConversationID string
	Provider       string
	Model          string
	Messages       int
	Chunks         int
	Bytes          int
	Duration       time.Duration
	Usage          Usage
}

// CompleteEvent is passed to Hooks.OnComplete after every stream.
type CompleteEvent struct {
	Result
	Success bool
}

// Hooks are optional callbacks for instrumentation. Nil fields are skipped.
type Hooks struct {
	OnComplete func(e *CompleteEvent)
}

// Service wires the prompt source to a provider.
type Service struct {
	prompts  PromptSource
	provider Provider
	logger   log.Logger
	hooks    Hooks
}

// NewService creates a chat service. prompts and provider are required.
func NewService(prompts PromptSource, provider Provider, logger log.Logger, hooks Hooks) *Service {
	if prompts == nil || provider == nil {
		panic(xerrors.New("chat.NewService: nil prompt source or provider"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{prompts: prompts, provider: provider, logger: logger, hooks: hooks}
}

// Stream validates req, prepends the system prompt and streams the reply into sink.
// Cancelling ctx (client disconnect) aborts generation. There are no retries.
func (s *Service) Stream(ctx context.Context, req *Request, sink Sink) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	res := &Result{
		ConversationID: req.ConversationID,
		Provider:       s.provider.Name(),
		Model:          s.provider.Model(),
	}

	ctx, span := tracer.Start(ctx, "chat.stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.conversation_id", res.ConversationID),
		attribute.String("gen_ai.system", res.Provider),
		attribute.String("gen_ai.request.model", res.Model),
	)

	L := s.logger.With("conversation_id", res.ConversationID, "model", res.Model)

	prompt, err := s.prompts.BuildSystemPrompt(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "system prompt")
		return nil, err
	}

	msgs := withSystemPrompt(prompt, req.Messages)
	res.Messages = len(msgs)
	span.SetAttributes(attribute.Int("chat.messages", res.Messages))

	L.Info(ctx, "creating ai chat completion", "provider", res.Provider, "message_count", res.Messages)

	start := time.Now()
	usage, err := s.provider.Stream(ctx, msgs, func(delta string) error {
		if delta == "" {
			return nil
		}
		res.Chunks++
		res.Bytes += len(delta)
		return sink(delta)
	})
	res.Duration = time.Since(start)
	res.Usage = usage

	span.SetAttributes(
		attribute.Int("chat.chunks", res.Chunks),
		attribute.Int64("gen_ai.usage.input_tokens", usage.InputTokens),
		attribute.Int64("gen_ai.usage.output_tokens", usage.OutputTokens),
	)

	success := err == nil
	if s.hooks.OnComplete != nil {
		s.hooks.OnComplete(&CompleteEvent{Result: *res, Success: success})
	}

	fields := []any{
		"provider", res.Provider,
		"message_count", res.Messages,
		"duration_ms", res.Duration.Milliseconds(),
		"chunk_count", res.Chunks,
		"success", success,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.Canceled) {
			L.Warn(ctx, "ai request aborted by client", fields...)
		} else {
			L.Error(ctx, err, "ai request failed", fields...)
		}
		var pe *ProviderError
		if !errors.As(err, &pe) && !errors.Is(err, context.Canceled) {
			err = &ProviderError{Provider: res.Provider, Err: err}
		}
		return res, err
	}

	L.Info(ctx, "ai request complete", fields...)
	return res, nil
}
