package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// listener owns one http.Server. Server and MetricsServer share its lifecycle.
type listener struct {
	name   string
	server *http.Server
	logger *slog.Logger
}

func newListener(name, host string, port int, handler http.Handler, logger *slog.Logger) listener {
	return listener{
		name:   name,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// serve blocks until the listener fails or is shut down. A clean shutdown returns nil.
func (l *listener) serve() error {
	l.logger.Info("starting "+l.name+" server", slog.String("addr", l.server.Addr))

	if err := l.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start %s server: %w", l.name, err)
	}
	return nil
}

func (l *listener) shutdown(ctx context.Context) error {
	l.logger.Info("shutting down " + l.name + " server")
	return l.server.Shutdown(ctx)
}
