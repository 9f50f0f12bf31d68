package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odvcencio/gitobj/internal/httpapi"
	"github.com/odvcencio/gitobj/pkg/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repository over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metrics := repository.NewMetrics()
			registry := prometheus.NewRegistry()
			registry.MustRegister(
				metrics,
				prometheus.NewGoCollector(),
				prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
			)

			s, err := g.open(cmd, metrics)
			if err != nil {
				return err
			}
			defer s.Close()

			if addr == "" {
				addr = s.cfg.Server.ListenAddr
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			handler := httpapi.New(s.repo, s.logger, registry).Router()
			return serve(ctx, ln, handler, s.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.listen_addr from config)")

	return cmd
}

// serve runs handler on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", ln.Addr().String()).Info("serving")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
