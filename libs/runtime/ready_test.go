package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadyHandler(t *testing.T) {
	ok := ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }}
	bad := ReadyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("down") }}

	rw := httptest.NewRecorder()
	ReadyHandler(ok).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = httptest.NewRecorder()
	ReadyHandler(ok, bad, ReadyCheck{Name: "skipped"}).ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
	assert.Equal(t, "redis: down", rw.Body.String())
}

func TestHealthHandler(t *testing.T) {
	rw := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "ok", rw.Body.String())
}
