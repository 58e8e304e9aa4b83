package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/phuslu/log"
)

const shutdownTimeout = 5 * time.Second

// Server exposes /metrics and /healthz for an external scraper.
type Server struct {
	srv    *http.Server
	logger log.Logger
}

// NewServer builds the scrape endpoint on addr (e.g. ":9090").
func NewServer(addr string, collector *Collector, logger log.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		body, err := collector.Snapshot(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("metrics snapshot failed")
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str("addr", s.srv.Addr).Msg("metrics server stopped")
		}
	}()
	s.logger.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
}

// Stop drains the server, waiting briefly for in-flight scrapes.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
