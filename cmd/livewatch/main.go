// Command livewatch is a headless viewer for a self-hosted live streaming server.
// It:
//   - Loads configuration from the environment (and an optional .env file).
//   - Follows the stream's HLS playlist while the server reports it online.
//   - Keeps a chat session registered and connected, with an offline grace window.
//   - Exposes a local API with /healthz, /readyz, /state, /metrics and user-input routes.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/onnwee/livewatch/config"
)

var version = "dev"

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "livewatch",
		Short: "Headless viewer for a self-hosted live stream",
		Long: `livewatch watches a self-hosted live stream from the terminal.

It polls the server for stream status, follows the HLS playlist while the
stream is live, and keeps a chat identity registered so control commands
can be sent over the local API.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// local dev convenience only; production relies on real env
			_ = godotenv.Load(envFile)
			setupLogging()
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file to load before reading configuration")

	rootCmd.AddCommand(createWatchCmd())
	rootCmd.AddCommand(createStatusCmd())
	rootCmd.AddCommand(createRegisterCmd())
	rootCmd.AddCommand(createSealCmd())

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// setupLogging configures slog from LOG_LEVEL and LOG_FORMAT. Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}

// loadConfig applies flag overrides on top of the environment and validates the result.
func loadConfig(server string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if server != "" {
		cfg.ServerURL = strings.TrimRight(server, "/")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
