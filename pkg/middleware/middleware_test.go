package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdata/cohortsync/pkg/composables"
)

func TestWithLogger_RequestIDAndScopedLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	var scoped *logrus.Entry
	h := WithLogger(logger, "X-Request-ID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = composables.UseLogger(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cohorts/uploads", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	require.NotNil(t, scoped)
	assert.Equal(t, "req-42", scoped.Data["request-id"])

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "request completed", last.Message)
	assert.Equal(t, http.StatusAccepted, last.Data["status-code"])
}

func TestWithLogger_GeneratesRequestID(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := WithLogger(logger, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)
}

func TestWithLogger_RecoversPanic(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := WithLogger(logger, "X-Request-ID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cohorts/uploads/historico", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.Equal(t, "panic recovered in request handler", hook.LastEntry().Message)
}

func TestProvidePool_NilPoolPassesThrough(t *testing.T) {
	called := false
	h := ProvidePool(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := composables.UsePool(r.Context())
		assert.ErrorIs(t, err, composables.ErrNoPool)
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestCors_Preflight(t *testing.T) {
	h := Cors("http://app.test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/cohorts/uploads/historico", nil)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/cohorts/uploads/historico", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	_, err := RateLimit("lots", nil)
	require.Error(t, err)

	limit, err := RateLimit("2-H", nil)
	require.NoError(t, err)
	h := limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewRedisStore_RejectsMalformedURL(t *testing.T) {
	_, err := NewRedisStore("localhost:6379")
	require.Error(t, err)
}
