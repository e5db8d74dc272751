package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestWithRequestIDEchoesOrGenerates(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rw.Header().Get(RequestIDHeader))

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-123", seen)
}

func TestWithRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := WithRecover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rw.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
	assert.True(t, rl.Allow("other"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("k"))
}

func TestRateLimiterMiddlewareUsesKeyFunc(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute).WithKey(func(r *http.Request) string { return r.Header.Get("X-Phone") })
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	send := func(phone string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Phone", phone)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw.Code
	}
	assert.Equal(t, http.StatusOK, send("+1"))
	assert.Equal(t, http.StatusTooManyRequests, send("+1"))
	assert.Equal(t, http.StatusOK, send("+2"))
}

func TestTooManyWritesRetryAfter(t *testing.T) {
	rw := httptest.NewRecorder()
	tooMany(rw, 1500*time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, rw.Code)
	assert.Equal(t, "2", rw.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rw.Body.String())

	rw = httptest.NewRecorder()
	tooMany(rw, 0)
	assert.Equal(t, "1", rw.Header().Get("Retry-After"))
}

func TestRedactPath(t *testing.T) {
	assert.Equal(t, "/api/v1/conversations/{redacted}", RedactPath("/api/v1/conversations/+254700000001"))
	assert.Equal(t, "/api/v1/availability/2026-11-03", RedactPath("/api/v1/availability/2026-11-03"))
	assert.Equal(t, "/api/v1/appointments/code/AB12CD", RedactPath("/api/v1/appointments/code/AB12CD"))
	assert.Equal(t, "/api/v1/conversations/{redacted}", RedactPath("/api/v1/conversations/%2B254700000001"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Phone string `json:"phone"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"phone":"+1"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "+1", dst.Phone)

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"phone":"+1","extra":true}`))
	require.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(``))
	require.EqualError(t, DecodeJSON(req, &dst), "request body is empty")
}
