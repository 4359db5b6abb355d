package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"

	"github.com/linnemanlabs/intake/internal/chat"
	"github.com/linnemanlabs/intake/internal/intakeapi"
	"github.com/linnemanlabs/intake/internal/triage"
	"github.com/linnemanlabs/intake/internal/triage/memstore"
)

// stepProvider emits chunks and calls between after every chunk but the last.
type stepProvider struct {
	chunks  []string
	between func()
}

func (p *stepProvider) Name() string  { return "step" }
func (p *stepProvider) Model() string { return "step-1" }

func (p *stepProvider) Stream(_ context.Context, _ []chat.Message, sink chat.Sink) (chat.Usage, error) {
	for i, c := range p.chunks {
		if err := sink(c); err != nil {
			return chat.Usage{}, err
		}
		if i < len(p.chunks)-1 && p.between != nil {
			p.between()
		}
	}
	return chat.Usage{}, nil
}

func newTestHandler(t *testing.T, p chat.Provider) (http.Handler, *metrics.ServerMetrics) {
	t.Helper()

	svc := triage.NewService(triage.NewConfigStore(memstore.New(nil), triage.DefaultConfig()), log.Nop())
	api := intakeapi.New(log.Nop(), svc,
		intakeapi.WithChat(chat.NewService(svc, p, log.Nop(), chat.Hooks{})),
	)

	m := metrics.New()
	live := health.Fixed(true, "")
	return newHandler(newRouter(api, live, live), log.Nop(), m, 0), m
}

const chatBody = `{"messages":[{"role":"user","content":"I need a sales contract reviewed, I'm in Australia"}]}`

func TestHandler_ChatStreamsThroughMiddleware(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	var flushedBeforeLast bool
	p := &stepProvider{
		chunks:  []string{"Please email ", "john@acme.corp"},
		between: func() { flushedBeforeLast = rec.Flushed },
	}
	h, _ := newTestHandler(t, p)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(chatBody))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "Please email john@acme.corp" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !flushedBeforeLast {
		t.Error("first chunk was not flushed to the client before the reply finished")
	}
	if got := rec.Header().Get("X-Request-Id"); got == "" {
		t.Error("expected outer middleware to set X-Request-Id")
	}
}

func TestHandler_MetricsSkipStreams(t *testing.T) {
	t.Parallel()

	h, m := newTestHandler(t, &stepProvider{chunks: []string{"ok"}})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/config", nil),
		httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(chatBody)),
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d", req.Method, req.URL.Path, rec.Code)
		}
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	routes := map[string]bool{}
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "route" {
					routes[lp.GetValue()] = true
				}
			}
		}
	}
	if !routes["/api/config"] {
		t.Errorf("expected http_requests_total for /api/config, got routes %v", routes)
	}
	if routes["/api/chat"] {
		t.Error("chat stream should not pass through the http metrics middleware")
	}
}

func TestBypass(t *testing.T) {
	t.Parallel()

	mark := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(name))
		})
	}
	h := bypass(mark("wrapped"), mark("next"), "/api/chat")

	tests := []struct {
		path string
		want string
	}{
		{"/api/chat", "next"},
		{"/api/chat/", "wrapped"},
		{"/api/config", "wrapped"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Body.String() != tt.want {
			t.Errorf("%s served by %q, want %q", tt.path, rec.Body.String(), tt.want)
		}
	}
}

func TestShutdown_SkipsNilAndRunsInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	stop := func(name string, err error) func(context.Context) error {
		return func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Errorf("%s: expected a deadline on the stop context", name)
			}
			order = append(order, name)
			return err
		}
	}

	shutdown(log.Nop(), time.Second, []stopFn{
		{"api", stop("api", nil)},
		{"otel", nil},
		{"ops", stop("ops", errors.New("already closed"))},
	})

	if strings.Join(order, ",") != "api,ops" {
		t.Errorf("stop order = %v, want [api ops]", order)
	}
}

func TestShutdown_AllNil(t *testing.T) {
	t.Parallel()

	// components that failed to start hand back nil stop funcs
	shutdown(log.Nop(), time.Second, []stopFn{{"otel", nil}, {"api", nil}})
}
