// Package httpmiddleware provides composable net/http middleware: panic
// recovery, request IDs, CORS, rate limiting, request logging, and OpenTelemetry
// instrumentation.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Middleware wraps an http.Handler with additional behaviour.
type Middleware = func(next http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware in the list is the
// outermost: Wrap(h, a, b) serves requests as a(b(h)).
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// InjectLogger places lg into each request's context so downstream code can
// retrieve it with zctx.From.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), lg)))
		})
	}
}

// Instrument wraps the handler with otelhttp, recording spans and metrics
// under the given operation name.
func Instrument(operation string) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation)
	}
}

// statusWriter records the response status code for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// LogRequests logs one line per request with method, path, status, duration,
// and the request ID when present.
func LogRequests() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)),
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			zctx.From(r.Context()).Info("http request", fields...)
		})
	}
}
