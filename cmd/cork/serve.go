package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/corkboard/internal/board"
	"github.com/zulandar/corkboard/internal/logging"
	"github.com/zulandar/corkboard/internal/ratelimit"
	"github.com/zulandar/corkboard/internal/server"
	"github.com/zulandar/corkboard/internal/stream"
	"github.com/zulandar/corkboard/internal/webhook"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Corkboard HTTP server",
		Long:  "Serves the board API, live event streams and webhook delivery until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Corkboard config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath, addr string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	broadcaster := stream.New(stream.Options{
		Buffer: cfg.Stream.Buffer,
		Logger: logger.Named("stream"),
	})
	dispatcher := webhook.NewDispatcher(gormDB, webhook.Options{
		Workers:          cfg.Webhooks.Workers,
		QueueSize:        cfg.Webhooks.QueueSize,
		Timeout:          cfg.Webhooks.Timeout,
		FailureThreshold: cfg.Webhooks.FailureThreshold,
		RecentComments:   cfg.Events.RecentComments,
		UserAgent:        "corkboard-webhook/" + Version,
		Logger:           logger.Named("webhook"),
	})
	dispatcher.Start(ctx)
	defer dispatcher.Wait()

	svc := board.NewService(gormDB, board.Options{
		Logger: logger.Named("board"),
		Notify: []board.NotifyFunc{broadcaster.Publish, dispatcher.Enqueue},
	})
	srv, err := server.New(server.Options{
		Addr:           cfg.Server.Addr,
		TrustedProxies: cfg.Server.TrustedProxies,
		Board:          svc,
		Stream:         broadcaster,
		Limiter:        ratelimit.New(cfg.RateLimit.BoardCreates, cfg.RateLimit.Window),
		Logger:         logger.Named("http"),
		Heartbeat:      cfg.Stream.Heartbeat,
		RecentComments: cfg.Events.RecentComments,
		Version:        Version,
	})
	if err != nil {
		return err
	}

	logger.Info("starting corkboard",
		zap.String("version", Version),
		zap.String("driver", cfg.Database.Driver),
		zap.String("addr", cfg.Server.Addr))
	err = srv.Start(ctx)
	cancel()
	return err
}
