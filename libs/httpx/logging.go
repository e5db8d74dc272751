package httpx

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	otelx "github.com/md-rashed-zaman/apptchat/libs/otel"
)

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// WithAccessLog logs one line per request; 5xx responses log at error level.
// Phone numbers in the path are masked.
func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusCapturingResponseWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			level := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"request_id", RequestIDFromContext(r.Context()),
				"trace_id", otelx.TraceID(r.Context()),
				"method", r.Method,
				"path", RedactPath(r.URL.Path),
				"status", sw.status,
				"bytes", sw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// RedactPath replaces path segments that look like phone numbers (a leading
// plus or only digits, seven or more of them) with "{redacted}".
func RedactPath(path string) string {
	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if looksLikePhone(seg) {
			segs[i] = "{redacted}"
		}
	}
	return strings.Join(segs, "/")
}

func looksLikePhone(seg string) bool {
	if u, err := url.PathUnescape(seg); err == nil {
		seg = u
	}
	seg = strings.TrimPrefix(seg, "+")
	if len(seg) < 7 {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
