package server_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/server"
	"github.com/steffenmax/arbbot/internal/server/handler"
)

type noCycles struct{}

func (noCycles) LastReport() (domain.CycleReport, bool) { return domain.CycleReport{}, false }
func (noCycles) Cycles() int64                          { return 0 }

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := server.Routes(server.Config{APIKey: apiKey, Metrics: true}, server.Handlers{
		Health:        handler.NewHealthHandler(nil, logger),
		Status:        handler.NewStatusHandler("evaluate", noCycles{}),
		Candidates:    handler.NewCandidateHandler(noCycles{}, nil, logger),
		Opportunities: handler.NewOpportunityHandler(nil, nil, logger),
	}, nil, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRoutes_AuthGuardsAPI(t *testing.T) {
	srv := newTestServer(t, "secret")

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/api/health", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, srv.URL+"/api/status", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized,
		get(t, srv.URL+"/api/status", map[string]string{"X-API-Key": "wrong"}).StatusCode)
	assert.Equal(t, http.StatusOK,
		get(t, srv.URL+"/api/status", map[string]string{"Authorization": "Bearer secret"}).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/api/status?token=secret", nil).StatusCode)
}

func TestRoutes_Endpoints(t *testing.T) {
	srv := newTestServer(t, "")

	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.URL+"/api/candidates", nil).StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.URL+"/api/sizing", nil).StatusCode)
	assert.Equal(t, http.StatusNotImplemented, get(t, srv.URL+"/api/opportunities/closed", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/api/orders", nil).StatusCode)

	resp := get(t, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRoutes_CORS(t *testing.T) {
	srv := newTestServer(t, "")

	resp := get(t, srv.URL+"/api/health", map[string]string{"Origin": "https://dash.example"})
	assert.Equal(t, "https://dash.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}
