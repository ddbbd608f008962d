package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, c *OpsController, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	c.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestOpsController_Health(t *testing.T) {
	ok := NewOpsController("", pingerFunc(func(context.Context) error { return nil })).(*OpsController)
	rec := serve(t, ok, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := NewOpsController("", pingerFunc(func(context.Context) error { return errors.New("connection refused") })).(*OpsController)
	rec = serve(t, down, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "DB_UNAVAILABLE")
}

func TestOpsController_Metrics(t *testing.T) {
	c := NewOpsController("/debug/prometheus", nil).(*OpsController)
	rec := serve(t, c, "/debug/prometheus")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = serve(t, NewOpsController("", nil).(*OpsController), "/debug/prometheus")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
