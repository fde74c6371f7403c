package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/product-crawler/internal/monitoring"
)

// Pinger is a dependency whose health the server reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the body of /api/stats.
type Status struct {
	RunID      string    `json:"run_id"`
	CrawlName  string    `json:"crawl_name"`
	Mode       string    `json:"mode"`
	Output     string    `json:"output"`
	StartedAt  time.Time `json:"started_at"`
	Written    int       `json:"records_written"`
	Duplicates int       `json:"duplicates_dropped"`
}

// Server exposes metrics and crawl progress over HTTP while a crawl runs.
type Server struct {
	addr       string
	router     http.Handler
	httpServer *http.Server
	gatherer   prometheus.Gatherer
	metrics    *monitoring.Metrics
	status     func() Status
	checks     map[string]Pinger
	logger     *zap.Logger
}

// NewServer builds the server. checks maps a dependency name to its
// health probe and may be empty.
func NewServer(addr string, g prometheus.Gatherer, m *monitoring.Metrics, status func() Status, checks map[string]Pinger, l *zap.Logger) *Server {
	s := &Server{
		addr:     addr,
		gatherer: g,
		metrics:  m,
		status:   status,
		checks:   checks,
		logger:   l.With(zap.String("component", "api")),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and serves in the background.
// It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
