package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steffenmax/arbbot/internal/server/middleware"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRateLimit_PerClient(t *testing.T) {
	h := middleware.RateLimit(1, 2)(ok)

	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/candidates", nil)
		r.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		return r
	}

	assert.Equal(t, http.StatusOK, serve(h, req("203.0.113.7")).Code)
	assert.Equal(t, http.StatusOK, serve(h, req("203.0.113.7")).Code)
	rec := serve(h, req("203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(h, req("198.51.100.2")).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := middleware.RateLimit(0, 0)(ok)
	for range 50 {
		assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestAuth_TokenSources(t *testing.T) {
	h := middleware.Auth("s3cret", "/api/health")(ok)

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.Header.Set("Authorization", "bearer s3cret")
	assert.Equal(t, http.StatusOK, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/ws?token=s3cret", nil)
	assert.Equal(t, http.StatusOK, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, serve(h, r).Code)
}

func TestCORS_RejectsUnknownOrigin(t *testing.T) {
	h := middleware.CORS([]string{"https://dash.example"})(ok)

	r := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec := serve(h, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	r = httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	r.Header.Set("Origin", "https://DASH.example")
	rec = serve(h, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://DASH.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogging_LevelsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	failing := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	serve(middleware.Logging(logger)(failing), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status=503")

	buf.Reset()
	serve(middleware.Logging(logger)(ok), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Empty(t, buf.String())

	serve(middleware.Logging(logger)(ok), httptest.NewRequest(http.MethodGet, "/api/candidates", nil))
	assert.Contains(t, buf.String(), "bytes=2")
}
