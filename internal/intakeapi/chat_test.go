package intakeapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/intake/internal/chat"
	"github.com/linnemanlabs/intake/internal/triage"
)

// scriptedProvider emits chunks, then fails with err if set.
type scriptedProvider struct {
	chunks []string
	err    error
	got    []chat.Message
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Stream(_ context.Context, msgs []chat.Message, sink chat.Sink) (chat.Usage, error) {
	p.got = msgs
	for _, c := range p.chunks {
		if err := sink(c); err != nil {
			return chat.Usage{}, err
		}
	}
	return chat.Usage{}, p.err
}

func newChatRouter(t *testing.T, prompts chat.PromptSource, p chat.Provider, opts ...Option) http.Handler {
	t.Helper()
	svc := chat.NewService(prompts, p, log.Nop(), chat.Hooks{})
	return newTestRouter(t, newTestService(t), append(opts, WithChat(svc))...)
}

const chatBody = `{"messages":[{"role":"user","content":"I need a sales contract reviewed, I'm in Australia"}]}`

func TestChat_Streams(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{chunks: []string{"Please email ", "john@acme.corp"}}
	h := newChatRouter(t, newTestService(t), p)

	rec := do(t, h, http.MethodPost, "/api/chat", chatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Please email john@acme.corp" {
		t.Errorf("body = %q", rec.Body.String())
	}

	hdr := rec.Header()
	if ct := hdr.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := hdr.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if xb := hdr.Get("X-Accel-Buffering"); xb != "no" {
		t.Errorf("X-Accel-Buffering = %q", xb)
	}
	if _, err := uuid.Parse(hdr.Get(ConversationHeader)); err != nil {
		t.Errorf("%s = %q, want generated UUID", ConversationHeader, hdr.Get(ConversationHeader))
	}
	if !rec.Flushed {
		t.Error("response was not flushed while streaming")
	}

	if len(p.got) != 2 {
		t.Fatalf("provider got %d messages, want 2", len(p.got))
	}
	if p.got[0].Role != chat.RoleSystem || !strings.Contains(p.got[0].Content, "john@acme.corp") {
		t.Errorf("first message = %+v, want rendered system prompt", p.got[0])
	}
}

func TestChat_EchoesConversationID(t *testing.T) {
	t.Parallel()

	h := newChatRouter(t, newTestService(t), &scriptedProvider{chunks: []string{"ok"}})

	id := uuid.NewString()
	req := httptestRequest(http.MethodPost, "/api/chat", chatBody)
	req.Header.Set(ConversationHeader, id)
	rec := serve(h, req)

	if got := rec.Header().Get(ConversationHeader); got != id {
		t.Errorf("%s = %q, want %q", ConversationHeader, got, id)
	}
}

func TestChat_Validation(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{}
	h := newChatRouter(t, newTestService(t), p)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"no messages", `{"messages":[]}`, "messages"},
		{"missing messages", `{}`, "messages"},
		{"bad role", `{"messages":[{"role":"robot","content":"hi"}]}`, "messages[0].role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, h, http.MethodPost, "/api/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			e := decodeError(t, rec)
			if e.Error != "Validation failed" || len(e.Details) == 0 || e.Details[0].Field != tt.wantField {
				t.Errorf("body = %+v, want field %q", e, tt.wantField)
			}
		})
	}
}

func TestChat_BadConversationID(t *testing.T) {
	t.Parallel()

	h := newChatRouter(t, newTestService(t), &scriptedProvider{})

	req := httptestRequest(http.MethodPost, "/api/chat", chatBody)
	req.Header.Set(ConversationHeader, "not-a-uuid")
	rec := serve(h, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); len(e.Details) != 1 || e.Details[0].Field != "conversationId" {
		t.Errorf("details = %+v", e.Details)
	}
}

func TestChat_PromptFailure(t *testing.T) {
	t.Parallel()

	prompts := stubService{err: &triage.Error{Kind: triage.KindInternal, Msg: "Failed to build system prompt", Err: errors.New("read")}}
	h := newChatRouter(t, prompts, &scriptedProvider{chunks: []string{"x"}})

	rec := do(t, h, http.MethodPost, "/api/chat", chatBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "Failed to build system prompt" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestChat_ProviderFailsBeforeOutput(t *testing.T) {
	t.Parallel()

	h := newChatRouter(t, newTestService(t), &scriptedProvider{err: errors.New("upstream 401")}, WithDevMode(true))

	rec := do(t, h, http.MethodPost, "/api/chat", chatBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want JSON error", ct)
	}
	if !strings.Contains(rec.Body.String(), "upstream 401") {
		t.Errorf("dev mode body missing cause: %s", rec.Body.String())
	}
}

func TestChat_ProviderFailsMidStream(t *testing.T) {
	t.Parallel()

	h := newChatRouter(t, newTestService(t), &scriptedProvider{chunks: []string{"Partial"}, err: errors.New("connection reset")})

	rec := do(t, h, http.MethodPost, "/api/chat", chatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (headers already sent)", rec.Code)
	}
	if rec.Body.String() != "Partial\n[Stream error]\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestChat_EmptyReply(t *testing.T) {
	t.Parallel()

	h := newChatRouter(t, newTestService(t), &scriptedProvider{})

	rec := do(t, h, http.MethodPost, "/api/chat", chatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}
