package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/chat"
	"github.com/onnwee/livewatch/config"
	"github.com/onnwee/livewatch/player"
	"github.com/onnwee/livewatch/poller"
	"github.com/onnwee/livewatch/scheduler"
	"github.com/onnwee/livewatch/server"
	"github.com/onnwee/livewatch/session"
	"github.com/onnwee/livewatch/store"
	"github.com/onnwee/livewatch/telemetry"
)

func createWatchCmd() *cobra.Command {
	var (
		serverURL string
		addr      string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the stream and serve the local control API",
		Long: `Start a viewer session. The session runs until interrupted (Ctrl+C).

The local API listens on HTTP_ADDR (default localhost:8090); POST routes
require CONTROL_TOKEN when it is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, quiet)
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "Streaming server base URL (overrides STREAM_SERVER_URL)")
	cmd.Flags().StringVar(&addr, "addr", "", "Local API listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print session transitions")
	return cmd
}

func runWatch(ctx context.Context, cfg *config.Config, quiet bool) error {
	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(telemetry.TracingConfig{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    "livewatch",
		ServiceVersion: version,
		SampleRatio:    cfg.OTLPSampleRatio,
		Instance:       cfg.ServerURL,
	})
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer shutdownTracing()

	st, closeStore, err := store.Open(ctx, store.Options{
		Backend:       cfg.StoreBackend,
		FilePath:      cfg.StatePath,
		PostgresDSN:   cfg.DBDsn,
		Profile:       cfg.Profile,
		EncryptionKey: cfg.EncryptionKey,
	})
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Error("failed to close state store", slog.Any("err", err))
		}
	}()

	client := api.New(cfg.ServerURL)
	opts := session.DefaultOptions()
	opts.PollInterval = cfg.PollInterval
	opts.GraceWindow = cfg.ChatOfflineGrace
	opts.DurationTick = cfg.DurationTick
	opts.InstanceURL = cfg.ServerURL

	sched := scheduler.New(scheduler.RealClock{})
	coord := session.New(session.Deps{
		Config:    client,
		Poller:    poller.New(client),
		Player:    player.NewController(player.NewHLSEngine(nil), st, client, client.StreamURL()),
		Chat:      chat.NewManager(client, chat.NewWebsocketDialer(client.SocketURL), st, cfg.DisplayName),
		Store:     st,
		Scheduler: sched,
		Open:      openExternal,
	}, opts)
	if !quiet {
		coord.Observe(newPrinter(os.Stdout, sched.Clock().Now))
	}

	var wg sync.WaitGroup
	apiErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx, server.NewHandlers(coord, st), cfg.HTTPAddr); err != nil {
			apiErr <- err
		}
	}()

	color.Cyan("▶ watching %s (local API on %s)", cfg.ServerURL, cfg.HTTPAddr)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case err := <-apiErr:
			slog.Error("local api stopped", slog.Any("err", err))
			cancel()
		case <-runCtx.Done():
		}
	}()

	err = coord.Run(runCtx)
	cancel()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	color.Green("✅ session stopped")
	return nil
}

// openExternal announces a link the viewer asked to open; a headless client cannot launch a browser.
func openExternal(url string) error {
	color.Magenta("🔗 open %s", url)
	return nil
}
