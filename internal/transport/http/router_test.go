package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tremor/internal/causal"
	"tremor/internal/config"
	"tremor/internal/exporter"
	"tremor/internal/marketdata"
	"tremor/internal/propagation"
	"tremor/internal/signals"
	"tremor/internal/store"
)

const routerGrangerCSV = `cause,effect,f_statistic,p_value,lag
d_fed_funds,sp500_ret,9.1,0.003,1
`

type stubProvider struct{}

func (stubProvider) FetchDaily(ctx context.Context, node string, start, end time.Time) (marketdata.Series, error) {
	return nil, nil
}

func (stubProvider) FetchNodeSeries(ctx context.Context, node string, start, end time.Time) (marketdata.Series, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, loadGraph bool) (http.Handler, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Server: config.ServerConfig{ReadTimeout: 5 * time.Second},
		Causal: config.CausalConfig{
			ShockThresholdSD:       2.0,
			AbsoluteShockThreshold: 1.0,
			PropagationBufferWeeks: 2,
			MinEventsForStudy:      5,
			CheckConcurrency:       2,
		},
	}

	graph := causal.NewGraph(logger)
	if loadGraph {
		path := filepath.Join(t.TempDir(), "granger.csv")
		require.NoError(t, os.WriteFile(path, []byte(routerGrangerCSV), 0644))
		require.NoError(t, graph.Load(path))
	}
	baselines := causal.NewBaselines(logger)

	st := store.New("")
	provider := stubProvider{}
	factory := signals.NewFactory(st, cfg.Causal, logger)
	monitor := propagation.NewMonitor(st, graph, baselines, provider, cfg.Causal.PropagationBufferWeeks, cfg.Causal.CheckConcurrency, logger)
	engine := causal.NewEventStudyEngine(st, provider, cfg.Causal.MinEventsForStudy, logger)

	router := NewRouter(Deps{
		Config:   cfg,
		Store:    st,
		Factory:  factory,
		Monitor:  monitor,
		Graph:    graph,
		Engine:   engine,
		Exporter: exporter.NewStudyExporter(),
		Metrics:  NewMetrics(),
		Logger:   logger,
	})
	return router, st
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Run("ok with loaded graph", func(t *testing.T) {
		router, _ := newTestRouter(t, true)
		rec := doJSON(t, router, http.MethodGet, "/healthz", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, float64(2), body["graph_nodes"])
	})

	t.Run("degraded without graph", func(t *testing.T) {
		router, _ := newTestRouter(t, false)
		rec := doJSON(t, router, http.MethodGet, "/healthz", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
	})
}

func TestCreateEvent_RunsTransformsAndOpensMonitors(t *testing.T) {
	router, _ := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodPost, "/api/signals/transforms", map[string]interface{}{
		"name":                 "fed surprise",
		"event_types":          []string{"fomc_decision"},
		"transform_expression": "actual - consensus",
		"node_mapping":         "d_fed_funds",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/events", map[string]interface{}{
		"timestamp": "2024-03-20T18:00:00Z",
		"type":      "fomc_decision",
		"raw_data":  map[string]float64{"actual": 5.5, "consensus": 4.0},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Event struct {
			ID string `json:"id"`
		} `json:"event"`
		Signals []struct {
			Value   float64 `json:"value"`
			IsShock bool    `json:"is_shock"`
		} `json:"signals"`
		MonitorsCreated int `json:"monitors_created"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Event.ID)
	require.Len(t, body.Signals, 1)
	assert.InDelta(t, 1.5, body.Signals[0].Value, 1e-9)
	assert.True(t, body.Signals[0].IsShock, "short history falls back to the absolute threshold")
	assert.Equal(t, 1, body.MonitorsCreated, "one monitor per downstream edge")

	rec = doJSON(t, router, http.MethodGet, "/api/monitor/propagations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateEvent_ValidationProblem(t *testing.T) {
	router, _ := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodPost, "/api/events", map[string]interface{}{
		"timestamp": "2024-03-20T18:00:00Z",
		"type":      "fomc_decision",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestGetEvent_NotFoundProblem(t *testing.T) {
	router, _ := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodGet, "/api/events/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestCreateTransform_RejectsBadExpression(t *testing.T) {
	router, _ := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodPost, "/api/signals/transforms", map[string]interface{}{
		"name":                 "broken",
		"event_types":          []string{"fomc_decision"},
		"transform_expression": "actual +",
		"node_mapping":         "d_fed_funds",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestNetworkAndPathEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodGet, "/api/monitor/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var network struct {
		Nodes []string `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &network))
	assert.ElementsMatch(t, []string{"d_fed_funds", "sp500_ret"}, network.Nodes)

	rec = doJSON(t, router, http.MethodGet, "/api/monitor/path?source=d_fed_funds&target=sp500_ret", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/monitor/path?source=d_fed_funds&target=unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTraceHeaderIsEchoed(t *testing.T) {
	router, _ := newTestRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tremor_http_requests_total")
}

func TestRunStudy_RejectsUnknownTransform(t *testing.T) {
	router, _ := newTestRouter(t, true)

	rec := doJSON(t, router, http.MethodPost, "/api/causal-tests/run", map[string]interface{}{
		"transform_id": "7b3e1c2a-9f64-4c1d-8d2a-5f6e7a8b9c0d",
		"target_node":  "sp500_ret",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}
