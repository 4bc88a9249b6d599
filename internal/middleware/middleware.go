package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/k-laffite/water-quality-visualizer/internal/infrastructure"
)

// contextKey is a private type for context keys defined by this package.
type contextKey string

// RequestIDKey is the context key for the request ID
const RequestIDKey contextKey = "request-id"

// RequestID assigns every request a UUID, honoring a client-supplied
// X-Request-ID. Install it first so everything downstream logs under
// the same ID.
func RequestID(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", id)

		// Seed chi's key too so middleware.GetReqID resolves
		// downstream; the same value doubles as the log trace_id
		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
		ctx = infrastructure.WithTraceID(ctx, id)

		// An active span wins over the generated ID
		if spanTrace := infrastructure.TraceIDFromContext(ctx); spanTrace != "" {
			ctx = infrastructure.WithTraceID(ctx, spanTrace)
		}

		r = r.WithContext(ctx)
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// GetReqID returns the request ID stored by RequestID, or "".
func GetReqID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// StructuredLogger logs one line at request start and one at
// completion, both correlated by trace_id. Belongs after RequestID and
// RealIP in the chain.
func StructuredLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			method, path := r.Method, r.URL.Path

			tid := infrastructure.GetTraceID(ctx)
			if tid == "" {
				tid = GetReqID(ctx)
			}

			lg := log
			if tid != "" {
				lg = log.With(slog.String("trace_id", tid))
			}

			// Wrapped writer captures status and bytes for the
			// completion line
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			lg.InfoContext(ctx, "request started",
				slog.String("method", method),
				slog.String("path", path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)

			next.ServeHTTP(wrapped, r)

			lg.InfoContext(ctx, "request completed",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", wrapped.Status()),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.String("duration", time.Since(start).String()),
			)
		}
		return http.HandlerFunc(fn)
	}
}

// Recoverer turns panics into logged RFC 7807 responses instead of
// dropped connections.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()

					log.ErrorContext(ctx, "panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)

					tid := infrastructure.GetTraceID(ctx)
					if tid == "" {
						tid = GetReqID(ctx)
					}

					problem := ProblemFromStatus(
						http.StatusInternalServerError,
						"An unexpected error occurred",
						tid,
					)
					problem.Render(w, r)
				}
			}()

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// RateLimiter holds a token-bucket limiter shared across all requests.
type RateLimiter struct {
	bucket *rate.Limiter
	logger *slog.Logger
}

// NewRateLimiter builds a limiter allowing rps sustained requests with
// the given burst.
func NewRateLimiter(rps float64, burst int, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(rps), burst),
		logger: log,
	}
}

// Handler rejects requests over the limit with a 429 and a Retry-After.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	const retryAfterSeconds = 60

	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !l.bucket.Allow() {
			l.logger.WarnContext(ctx, "rate limit exceeded",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			problem := ProblemFromStatus(
				http.StatusTooManyRequests,
				"Rate limit exceeded. Please retry after 60 seconds",
				infrastructure.GetTraceID(ctx),
			)
			problem.Render(w, r)
			return
		}

		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// Timeout cancels the request context after the given duration and
// answers with a 504 if the handler has not started writing yet.
func Timeout(limit time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), limit)
			defer cancel()

			// Guard the shared writer so late writes from the handler
			// goroutine are dropped once the timeout response is sent
			tw := &timeoutWriter{ResponseWriter: w}

			finished := make(chan struct{})

			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(finished)
			}()

			select {
			case <-finished:
				// Handler finished in time
			case <-ctx.Done():
				log.ErrorContext(r.Context(), "request timeout",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("timeout", limit.String()),
				)

				problem := ProblemFromStatus(
					http.StatusGatewayTimeout,
					"The request took too long to process",
					infrastructure.GetTraceID(r.Context()),
				)
				tw.timeout(func(w http.ResponseWriter) {
					problem.Render(w, r)
				})
			}
		}
		return http.HandlerFunc(fn)
	}
}

// timeoutWriter suppresses handler writes after the timeout response
// has been written. All writes go through one mutex so the timeout
// response cannot interleave with a slow handler's output.
type timeoutWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	timedOut    bool
	wroteHeader bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return len(b), nil
	}
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

// timeout marks the writer as timed out and writes the 504 response,
// unless the handler already started responding.
func (tw *timeoutWriter) timeout(write func(http.ResponseWriter)) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.timedOut = true
	if tw.wroteHeader {
		return
	}
	write(tw.ResponseWriter)
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int

	// Logger, when set, records preflight decisions at debug level.
	Logger *slog.Logger
}

// CORS answers preflights and sets the Access-Control headers. An
// empty AllowedOrigins list allows every origin.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 300
	}

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqOrigin := r.Header.Get("Origin")

			originOK := len(cfg.AllowedOrigins) == 0 ||
				slices.ContainsFunc(cfg.AllowedOrigins, func(candidate string) bool {
					return candidate == "*" || strings.EqualFold(candidate, reqOrigin)
				})

			headers := w.Header()
			if originOK && reqOrigin != "" {
				headers.Set("Access-Control-Allow-Origin", reqOrigin)
			} else if len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] == "*" {
				headers.Set("Access-Control-Allow-Origin", "*")
			}

			headers.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", "))
			headers.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", "))

			if len(cfg.ExposedHeaders) > 0 {
				headers.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", "))
			}

			if cfg.AllowCredentials {
				headers.Set("Access-Control-Allow-Credentials", "true")
			}

			headers.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Logger != nil {
				cfg.Logger.DebugContext(r.Context(), "CORS preflight request",
					slog.String("origin", reqOrigin),
					slog.Bool("allowed", originOK),
				)
			}
			w.WriteHeader(http.StatusNoContent)
		}
		return http.HandlerFunc(fn)
	}
}

// Compress re-exports chi's gzip middleware under this package's name.
func Compress(lvl int) func(http.Handler) http.Handler {
	return middleware.Compress(lvl)
}

// RealIP re-exports chi's RealIP so the app wires one package.
func RealIP(h http.Handler) http.Handler {
	return middleware.RealIP(h)
}
