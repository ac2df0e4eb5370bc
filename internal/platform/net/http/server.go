package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"tubesense/internal/platform/config"
	"tubesense/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server is a thin wrapper over chi and http.Server
type Server struct {
	addr  string
	mux   *chi.Mux
	srv   *stdhttp.Server
	grace time.Duration
}

// NewServer reads ADDR and SHUTDOWN_GRACE from cfg; opts receive the mux
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayString("ADDR", ":4000")
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr:  addr,
		mux:   m,
		grace: cfg.MayDuration("SHUTDOWN_GRACE", 10*time.Second),
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns a Router facade over the internal chi mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr returns the listening address
func (s *Server) Addr() string { return s.addr }

// Run serves until ctx is cancelled, then shuts down within the grace period
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), s.grace)
		defer cancel()
		log.Info().Msg("http shutting down")
		if err := s.srv.Shutdown(sctx); err != nil {
			return err
		}
		return nil
	}
}
