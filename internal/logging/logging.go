// Package logging configures slog for the service: JSON output, a
// runtime-adjustable level, and a handler that keeps provider
// credentials and prompt payloads out of the log stream.
package logging

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

var level = new(slog.LevelVar)

// redactedKeys are attribute names whose values are always replaced,
// whatever their casing: auth headers, cookies, and request payloads
// (prompt variables can carry end-user content).
var redactedKeys = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"x-api-key":           {},
	"x-goog-api-key":      {},
	"cookie":              {},
	"set-cookie":          {},
	"body":                {},
	"request_body":        {},
	"variables":           {},
}

// redactedFragments catch credential-ish keys by substring.
var redactedFragments = []string{"key", "token", "secret", "password"}

// Setup builds the process logger and installs it as slog's default.
func Setup(lvl string) *slog.Logger {
	SetLevel(lvl)
	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(&RedactingHandler{base: base})
	slog.SetDefault(logger)
	return logger
}

// SetLevel adjusts the global level at runtime. Unrecognized values fall
// back to info.
func SetLevel(lvl string) {
	switch lvl {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// RedactingHandler rewrites sensitive attribute values before delegating
// to the wrapped handler.
type RedactingHandler struct {
	base slog.Handler
}

func (h *RedactingHandler) Enabled(ctx context.Context, lv slog.Level) bool {
	return h.base.Enabled(ctx, lv)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.base.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	safe := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		safe[i] = redact(a)
	}
	return &RedactingHandler{base: h.base.WithAttrs(safe)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{base: h.base.WithGroup(name)}
}

func redact(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if _, ok := redactedKeys[key]; ok {
		return slog.String(a.Key, "[REDACTED]")
	}
	for _, frag := range redactedFragments {
		if strings.Contains(key, frag) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// RequestLogger is chi middleware that emits one structured line per
// HTTP request. Bodies and auth headers never appear.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = middleware.GetReqID(r.Context())
			}

			next.ServeHTTP(ww, r)

			logger.Info("http_request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("elapsed_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", reqID),
				slog.String("remote", r.RemoteAddr),
			)
		})
	}
}
