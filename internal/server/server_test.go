package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaboard/dashboard/internal/charts"
	"github.com/qaboard/dashboard/internal/notify"
	"github.com/qaboard/dashboard/internal/observability"
	"github.com/qaboard/dashboard/internal/pipeline"
	"github.com/qaboard/dashboard/internal/qaapi"
	"github.com/qaboard/dashboard/internal/view"
)

func newTestServer(t *testing.T) (*Server, *pipeline.Dashboard) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	dash := pipeline.New(
		qaapi.NewMockClient(),
		view.NewDocument(view.DefaultLayout()),
		charts.NewGenerator(),
		notify.NewSink(logger, notify.DefaultTTL),
		logger,
		observability.NewRecorder(reg),
		pipeline.Options{},
	)
	t.Cleanup(dash.Teardown)
	return NewServer(dash, logger, reg), dash
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandleDashboard(t *testing.T) {
	srv, dash := newTestServer(t)
	_, err := dash.RefreshAll(context.Background())
	require.NoError(t, err)

	rr := do(t, srv, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "QA Dashboard")
	assert.Contains(t, body, `id="executions-table"`)
	assert.Contains(t, body, `src="/charts/trend"`)
	assert.Contains(t, body, "badge bg-")
}

func TestHandleDashboardBeforeFirstRefresh(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Charts load after the first refresh.")
}

func TestHandleChart(t *testing.T) {
	srv, dash := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/charts/trend", "").Code)

	_, err := dash.RefreshMetrics(context.Background())
	require.NoError(t, err)
	rr := do(t, srv, http.MethodGet, "/charts/performance", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "chart-performance")
}

func TestRefreshAPI(t *testing.T) {
	srv, dash := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/v1/refresh/all", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Cycle)
	assert.Equal(t, pipeline.TriggerManual, resp.Trigger)
	assert.Empty(t, resp.Failed)
	assert.Len(t, dash.Document().Rows(view.ExecutionsTable), 10)

	rr = do(t, srv, http.MethodPost, "/api/v1/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, uint64(2), resp.Cycle)
}

func TestDashboardAPI(t *testing.T) {
	srv, dash := newTestServer(t)
	_, err := dash.RefreshAll(context.Background())
	require.NoError(t, err)

	rr := do(t, srv, http.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dashboardResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp.State)
	assert.Len(t, resp.Widgets, 3)
	assert.NotEmpty(t, resp.Document.Fields[view.SuccessRate].Text)
	assert.Len(t, resp.Document.Containers[view.PipelineList], 4)
}

func TestRunTestsAPI(t *testing.T) {
	srv, dash := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/v1/run-tests", `{"kind":"api","environment":"staging"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var ack qaapi.RunAck
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	assert.NotEmpty(t, ack.ExecutionID.String())

	active := dash.Notifications().Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.Success, active[0].Severity)

	assert.Equal(t, http.StatusAccepted, do(t, srv, http.MethodPost, "/api/v1/run-tests", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/run-tests", "{").Code)
}

func TestActionStubsAndNotifications(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/v1/executions/42/details", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var n notify.Notification
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &n))
	assert.Equal(t, "Viewing details of execution #42", n.Message)

	rr = do(t, srv, http.MethodPost, "/api/v1/executions/42/report", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/v1/notifications", "")
	var list []notify.Notification
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Downloading report of execution #42", list[1].Message)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/notifications/"+n.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/v1/notifications/"+n.ID, "").Code)
}

func TestControlsAfterTeardown(t *testing.T) {
	srv, dash := newTestServer(t)
	dash.Teardown()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/v1/refresh", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/v1/run-tests", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, "/api/v1/executions/1/details", "").Code)
}

func TestMetricsAndHealth(t *testing.T) {
	srv, dash := newTestServer(t)
	_, err := dash.RefreshMetrics(context.Background())
	require.NoError(t, err)

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `qadash_fetch_total{outcome="success",source="metrics"} 1`)
	assert.Contains(t, rr.Body.String(), "qadash_live_widgets 3")

	rr = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRefreshSurvivesClientDisconnect(t *testing.T) {
	srv, dash := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh/all", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Failed)
	assert.Empty(t, dash.Notifications().Active())
	assert.NotEmpty(t, dash.Document().Text(view.SuccessRate))
}
