package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/onnwee/livewatch/crypto"
	"github.com/onnwee/livewatch/store"
)

func createSealCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seal-token",
		Short: "Encrypt a chat access token stored in plaintext",
		Long: `Rewrite a plaintext chat access token left by a run without ENCRYPTION_KEY
as an AES-256-GCM sealed value. Requires ENCRYPTION_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig("")
			if err != nil {
				return err
			}
			if cfg.EncryptionKey == "" {
				return errors.New("ENCRYPTION_KEY is required to seal tokens")
			}
			enc, err := crypto.NewAESEncryptor(cfg.EncryptionKey)
			if err != nil {
				return fmt.Errorf("failed to initialize encryptor: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			// open the backend unwrapped so sealed and plaintext values are both visible
			raw, closeStore, err := store.Open(ctx, store.Options{
				Backend:     cfg.StoreBackend,
				FilePath:    cfg.StatePath,
				PostgresDSN: cfg.DBDsn,
				Profile:     cfg.Profile,
			})
			if err != nil {
				return fmt.Errorf("failed to open state store: %w", err)
			}
			defer func() {
				if err := closeStore(); err != nil {
					slog.Error("failed to close state store", slog.Any("err", err))
				}
			}()

			keys, err := store.SealPlaintext(ctx, raw, enc, []string{store.KeyAccessToken}, dryRun)
			if err != nil {
				return err
			}
			switch {
			case len(keys) == 0:
				color.Green("✅ nothing to seal")
			case dryRun:
				color.Yellow("would seal %v (dry-run)", keys)
			default:
				color.Green("✅ sealed %v", keys)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be sealed without making changes")
	return cmd
}
