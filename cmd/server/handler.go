package main

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/intake/internal/intakeapi"
	"github.com/linnemanlabs/intake/internal/postgres"
)

// streamingPaths are served around the go-core metrics middleware. Its status writer
// does not implement http.Flusher, so every chunk would sit in the server buffer.
// chat.Metrics records these streams instead.
var streamingPaths = []string{"/api/chat"}

// newRouter builds the chi router for the main listener.
func newRouter(api *intakeapi.API, liveness, readiness health.Probe) chi.Router {
	r := chi.NewRouter()

	// Compress JSON responses; the text/plain chat stream is left alone
	r.Use(middleware.Compress(5, "application/json"))

	// Annotate logger (and tracer if trace is recording) with http.route from chi route pattern
	r.Use(httpmw.AnnotateHTTPRoute)

	// Stash HTTP method and per-request query stats in context for DB metrics and logs.
	r.Use(postgres.Middleware)

	// Access log middleware
	r.Use(httpmw.AccessLog())

	// Limit request body size, this is a wrapper around http.MaxBytesHandler which returns 413 if limit is exceeded
	r.Use(httpmw.MaxBody(maxBodyBytes))

	// add health check endpoints to main listener
	r.Get("/-/healthy", health.HealthzHandler(liveness))
	r.Get("/-/ready", health.ReadyzHandler(readiness))
	r.Get("/health", health.HealthzHandler(liveness))

	api.RegisterRoutes(r)
	return r
}

// newHandler wraps the router in the main listener's middleware stack. Order matters,
// these are wrappers: outermost sees the raw request first and the response last,
// innermost has the full rich context from outer middleware.
func newHandler(r http.Handler, L log.Logger, m *metrics.ServerMetrics, trustedHops int) http.Handler {
	h := r

	// Request-scoped logging (inner so it sees trace_id, chi route, etc)
	h = httpmw.WithLogger(L)(h)

	// add trace-id and span-id headers to any requests with a recording trace
	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	// otel instrumentation for automatic spans and trace context propagation
	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// dont trace health/readiness checks
			return r.URL.Path != "/-/healthy" && r.URL.Path != "/-/ready" && r.URL.Path != "/health"
		}),
		// AnnotateHTTPRoute will rename the span later to the final route pattern
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		// WithPublicEndpointFn is the replacement for WithPublicEndpoint()
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)

	// Metrics middleware for prometheus instrumentation, streams bypass it
	h = bypass(m.Middleware(h), h, streamingPaths...)

	// Client IP resolution and spoofing protection middleware, outer so downstream middleware
	// and handlers can use the resolved client ip from context for consistency and security
	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{
		TrustedHops: trustedHops,
	})(h)

	// Request ID (outer so everything downstream sees it)
	h = httpmw.RequestID("X-Request-Id")(h)

	// Recovery middleware to recover and log panics and serve 500 response.
	// Outer to catch panics from any downstream middleware or handlers
	h = httpmw.Recover(L, m.IncHttpPanic)(h)

	// Security headers outermost to ensure they are served on every response
	h = httpmw.SecurityHeaders(h)

	return h
}

// bypass routes requests for paths to next and everything else to wrapped.
func bypass(wrapped, next http.Handler, paths ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(paths, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		wrapped.ServeHTTP(w, r)
	})
}

type stopFn struct {
	name string
	fn   func(context.Context) error
}

// shutdown runs each stop func with an equal slice of budget. Nil funcs belong to
// components that never started and are skipped.
func shutdown(L log.Logger, budget time.Duration, fns []stopFn) {
	fns = slices.DeleteFunc(slices.Clone(fns), func(s stopFn) bool { return s.fn == nil })
	if len(fns) == 0 {
		return
	}

	perComponent := budget / time.Duration(len(fns))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	for _, s := range fns {
		cctx, ccancel := context.WithTimeout(shutdownCtx, perComponent)
		if err := s.fn(cctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		ccancel()
	}
}
