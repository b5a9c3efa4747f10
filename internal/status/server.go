package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

// Report is the body of GET /status.
type Report struct {
	CycleID       string            `json:"cycleId"`
	CycleStarted  time.Time         `json:"cycleStarted"`
	Sessions      map[string]string `json:"sessions"`
	StrategyPhase string            `json:"strategyPhase"`
	RealizedPnL   string            `json:"realizedPnl"`
	OpenPosition  string            `json:"openPosition,omitempty"`
	Orders        []Order           `json:"orders,omitempty"`
}

// Order is one entry of the order ledger.
type Order struct {
	RequestID int64   `json:"requestId"`
	OrderID   int64   `json:"orderId,omitempty"`
	Leg       string  `json:"leg"`
	Action    string  `json:"action"`
	Qty       int64   `json:"qty"`
	FilledQty int64   `json:"filledQty"`
	AvgPx     float64 `json:"avgPx,omitempty"`
	State     string  `json:"state"`
}

// Server serves health, status and metrics.
type Server struct {
	engine *gin.Engine
	report func() Report
}

// NewServer builds the routes. gatherer backs /metrics.
func NewServer(report func() Report, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: gin.New(), report: report}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/healthz", s.getHealth)
	s.engine.GET("/status", s.getStatus)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logs.Infof("status server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	if s.report == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no report"})
		return
	}
	c.JSON(http.StatusOK, s.report())
}
