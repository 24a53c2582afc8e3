package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/livewatch/api"
	"github.com/onnwee/livewatch/store"
)

func createRegisterCmd() *cobra.Command {
	var (
		serverURL string
		name      string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a chat identity and persist its access token",
		Long: `Register a new chat user with the server and store the access token
in the configured state backend. A later watch reuses it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(serverURL)
			if err != nil {
				return err
			}
			if name == "" {
				name = cfg.DisplayName
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

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

			reg, err := api.New(cfg.ServerURL).Register(ctx, name)
			if err != nil {
				color.Red("❌ registration failed: %v", err)
				return err
			}
			if err := st.Set(ctx, store.KeyAccessToken, reg.AccessToken); err != nil {
				return fmt.Errorf("persist access token: %w", err)
			}
			if err := st.Set(ctx, store.KeyUsername, reg.DisplayName); err != nil {
				return fmt.Errorf("persist username: %w", err)
			}
			if err := store.SetBool(ctx, st, store.KeyChatBlocked, false); err != nil {
				return fmt.Errorf("clear blocked flag: %w", err)
			}
			color.Green("✅ registered as %s", reg.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "Streaming server base URL (overrides STREAM_SERVER_URL)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name to request (defaults to CHAT_DISPLAY_NAME)")
	return cmd
}
