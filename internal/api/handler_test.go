package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/aggregator"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage/sqlite"
)

func ptr[T any](v T) *T { return &v }

func init() {
	gin.SetMode(gin.TestMode)
}

func seededStorage(t *testing.T) storage.Storage {
	t.Helper()
	st, err := sqlite.NewSQLiteStorage(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SaveTickets(ctx, []domain.TicketSummary{
		{ID: 101, Subject: "printer", Status: "closed", Channel: ptr("email"), SatScore: ptr("good")},
		{ID: 102, Subject: "login", Status: "closed", Channel: ptr("web"), SatScore: ptr("bad"), SatComment: ptr("slow")},
		{ID: 103, Subject: "vpn", Status: "closed", Channel: ptr("email"), SatScore: ptr("good")},
	}))
	require.NoError(t, st.SaveMetrics(ctx, []domain.TicketMetrics{
		{ID: 1, TicketID: 101, FullResoMins: ptr(30.0)},
		{ID: 2, TicketID: 102, FullResoMins: ptr(45.0)},
	}))
	require.NoError(t, st.SaveComments(ctx, []domain.TicketComment{
		{ID: 11, Body: "hello", TicketID: 101},
		{ID: 12, Body: "thanks", TicketID: 101},
	}))
	require.NoError(t, st.SaveRun(ctx, &domain.CollectionRun{
		ID: "run-1", Kind: domain.DatasetTickets, Status: domain.RunCompleted, Rows: 3, StartedAt: time.Now(),
	}))
	return st
}

func newRouter(t *testing.T, st storage.Storage) *gin.Engine {
	t.Helper()
	return SetupRoutes(NewHandler(st, aggregator.NewAggregator(st)), logger.Discard(), nil)
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHealthCheck(t *testing.T) {
	w, body := get(t, newRouter(t, seededStorage(t)), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"ok"`, string(body["status"]))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestListTickets(t *testing.T) {
	router := newRouter(t, seededStorage(t))

	w, body := get(t, router, "/api/v1/tickets?channel=email")
	require.Equal(t, http.StatusOK, w.Code)
	var tickets []domain.TicketSummary
	require.NoError(t, json.Unmarshal(body["data"], &tickets))
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(101), tickets[0].ID)
	assert.Equal(t, int64(103), tickets[1].ID)

	_, body = get(t, router, "/api/v1/tickets?limit=1&offset=1")
	require.NoError(t, json.Unmarshal(body["data"], &tickets))
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(102), tickets[0].ID)
}

func TestGetTicket(t *testing.T) {
	router := newRouter(t, seededStorage(t))

	w, body := get(t, router, "/api/v1/tickets/102")
	require.Equal(t, http.StatusOK, w.Code)
	var ticket domain.TicketSummary
	require.NoError(t, json.Unmarshal(body["data"], &ticket))
	assert.Equal(t, "login", ticket.Subject)
	assert.Equal(t, "slow", *ticket.SatComment)

	w, body = get(t, router, "/api/v1/tickets/999")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, string(body["error"]), "NOT_FOUND")

	w, _ = get(t, router, "/api/v1/tickets/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTicketMetricsAndComments(t *testing.T) {
	router := newRouter(t, seededStorage(t))

	w, body := get(t, router, "/api/v1/tickets/101/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var m domain.TicketMetrics
	require.NoError(t, json.Unmarshal(body["data"], &m))
	assert.Equal(t, 30.0, *m.FullResoMins)

	w, _ = get(t, router, "/api/v1/tickets/103/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = get(t, router, "/api/v1/tickets/101/comments")
	require.Equal(t, http.StatusOK, w.Code)
	var comments []domain.TicketComment
	require.NoError(t, json.Unmarshal(body["data"], &comments))
	require.Len(t, comments, 2)
	assert.Equal(t, "hello", comments[0].Body)

	_, body = get(t, router, "/api/v1/tickets/103/comments")
	assert.JSONEq(t, `[]`, string(body["data"]))
}

func TestSatisfactionEndpoints(t *testing.T) {
	router := newRouter(t, seededStorage(t))

	w, body := get(t, router, "/api/v1/satisfaction/summary")
	require.Equal(t, http.StatusOK, w.Code)
	var summary domain.SatisfactionSummary
	require.NoError(t, json.Unmarshal(body["data"], &summary))
	assert.Equal(t, 3, summary.TotalTickets)
	assert.Equal(t, 2, summary.Good)
	assert.Equal(t, 2, summary.Comments)
	assert.Equal(t, 30.0, summary.AvgFullResoMins["good"])

	_, body = get(t, router, "/api/v1/satisfaction/channels")
	var channels []domain.ChannelSatisfaction
	require.NoError(t, json.Unmarshal(body["data"], &channels))
	require.Len(t, channels, 2)
	assert.Equal(t, "email", channels[0].Channel)
	assert.Equal(t, 1.0, channels[0].GoodRate)
}

func TestListRuns(t *testing.T) {
	_, body := get(t, newRouter(t, seededStorage(t)), "/api/v1/runs")
	var runs []domain.CollectionRun
	require.NoError(t, json.Unmarshal(body["data"], &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestDatasetMetrics(t *testing.T) {
	st := seededStorage(t)
	reg := prometheus.NewRegistry()
	m := NewDatasetMetrics(st, aggregator.NewAggregator(st), logger.Discard())
	require.NoError(t, m.Register(reg))
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.rows.WithLabelValues("tickets")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("comments")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.goodRate.WithLabelValues("web")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ratings.WithLabelValues("good")))

	router := SetupRoutes(NewHandler(st, aggregator.NewAggregator(st)), logger.Discard(),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	w, _ := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `helpdesk_dataset_rows{dataset="metrics"} 2`)
}

func TestDatasetMetricsRunStopsOnCancel(t *testing.T) {
	st := seededStorage(t)
	m := NewDatasetMetrics(st, aggregator.NewAggregator(st), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
