package postgres

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

type requestStatsKey struct{}

type httpMethodKey struct{}

// RequestStats accumulates database query statistics for one HTTP request.
type RequestStats struct {
	mu            sync.Mutex
	QueryCount    int
	TotalDuration time.Duration
	ErrorCount    int
}

// AddQuery records a single query execution.
func (s *RequestStats) AddQuery(dur time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCount++
	s.TotalDuration += dur
	if err != nil {
		s.ErrorCount++
	}
}

// Snapshot returns the current counters.
func (s *RequestStats) Snapshot() (queries int, total time.Duration, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.QueryCount, s.TotalDuration, s.ErrorCount
}

// NewRequestStatsContext returns a new context with an empty RequestStats attached.
func NewRequestStatsContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestStatsKey{}, &RequestStats{})
}

// RequestStatsFromContext extracts the RequestStats from the context, if present.
func RequestStatsFromContext(ctx context.Context) (*RequestStats, bool) {
	s, ok := ctx.Value(requestStatsKey{}).(*RequestStats)
	return s, ok
}

// WithHTTPMethod stores the HTTP method in the context for query metrics labelling.
func WithHTTPMethod(ctx context.Context, method string) context.Context {
	if method == "" {
		return ctx
	}
	return context.WithValue(ctx, httpMethodKey{}, method)
}

func httpMethodFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(httpMethodKey{}).(string); ok {
		return v
	}
	return ""
}

// Middleware labels queries issued while serving a request with its method and logs
// a per-request summary when the request touched the database.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := NewRequestStatsContext(WithHTTPMethod(r.Context(), r.Method))
		next.ServeHTTP(w, r.WithContext(ctx))

		s, _ := RequestStatsFromContext(ctx)
		queries, total, errs := s.Snapshot()
		if queries == 0 {
			return
		}
		log.FromContext(ctx).Info(ctx, "db request summary",
			"db.queries", queries,
			"db.duration", total.Seconds(),
			"db.errors", errs,
		)
	})
}
