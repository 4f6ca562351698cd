package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Protocol-Lattice/saathi/internal/metrics"
	"github.com/Protocol-Lattice/saathi/internal/server"
	"github.com/Protocol-Lattice/saathi/pkg/fulfillment"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one conversation over HTTP and websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context) error {
	m := metrics.New("saathi")
	hub := server.NewHub(logger.Named("hub"), m)
	a, err := newApp(ctx, cfg, logger, appOptions{
		sessionID: uuid.NewString(),
		onChange:  hub.Publish,
		notifier:  hub,
		metrics:   m,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(server.Options{
		Session:         a.session,
		Microphone:      a.mic,
		Hub:             hub,
		Webhook:         fulfillment.NewHandler(a.prices, logger.Named("webhook")),
		Metrics:         a.metrics,
		Logger:          logger.Named("server"),
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.ShutdownTimeout(),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", zap.String("session", a.session.ID()))
		a.session.StopSpeaking()
		return nil
	})
	return g.Wait()
}
