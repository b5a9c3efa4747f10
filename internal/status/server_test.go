package status

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"futurebot/internal/obs"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := obs.NewMetrics(reg)
	m.IncCycle()

	s := NewServer(func() Report {
		return Report{
			CycleID:       "c-1",
			Sessions:      map[string]string{"market": "Authorized", "account": "Authorized"},
			StrategyPhase: "InATrade",
			RealizedPnL:   "95.90",
			Orders:        []Order{{RequestID: 3, OrderID: 900, Leg: "Entry", Action: "Buy", Qty: 1, FilledQty: 1, AvgPx: 100, State: "Filled"}},
		}
	}, reg)

	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var r Report
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "c-1", r.CycleID)
	assert.Equal(t, "InATrade", r.StrategyPhase)
	assert.Equal(t, "Authorized", r.Sessions["account"])
	require.Len(t, r.Orders, 1)
	assert.Equal(t, "Filled", r.Orders[0].State)

	rec = get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trader_connection_cycles_total 1")
}

func TestStatusWithoutReport(t *testing.T) {
	s := NewServer(nil, prometheus.NewRegistry())
	rec := get(t, s.Handler(), "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
