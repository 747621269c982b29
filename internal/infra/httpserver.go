package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer owns the listener lifecycle for the API binary.
type HTTPServer struct {
	server       *http.Server
	drainTimeout time.Duration
}

// NewHTTPServer creates a configured HTTP server instance. The write timeout
// must outlive a full pipeline run including the image polling budget.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       cfg.HTTPIdleTimeout,
		},
		drainTimeout: cfg.HTTPWriteTimeout,
	}
}

func (s *HTTPServer) Addr() string { return s.server.Addr }

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// the write timeout so running pipelines can finish.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
	defer cancel()
	if err := s.server.Shutdown(drainCtx); err != nil {
		return err
	}
	return <-errCh
}
