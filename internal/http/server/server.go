// Package server encapsula el http.Server con timeouts sanos y apagado
// ordenado.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mockforge/mockforge/internal/observability/logger"
)

// Server envuelve http.Server con la configuración estándar del servicio.
type Server struct {
	srv *http.Server
}

// New crea el server para el handler dado.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Run escucha hasta que ctx se cancele y después apaga con gracia.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening", logger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.L().Info("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return s.srv.Close()
	}
	return <-errCh
}
