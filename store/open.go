package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/onnwee/livewatch/crypto"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string // memory | file | postgres
	FilePath      string
	PostgresDSN   string
	Profile       string
	EncryptionKey string // base64 32-byte key; empty disables sealing
}

// Open builds the configured backend. The returned close func releases the
// database handle for the postgres backend and is a no-op otherwise.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	var (
		s       Store
		closeFn = func() error { return nil }
	)
	switch opts.Backend {
	case "memory":
		s = NewMemoryStore()
	case "postgres":
		db, err := Connect(opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		s = &PostgresStore{DB: db, Profile: opts.Profile}
		closeFn = closeDB(db)
	case "file", "":
		path := opts.FilePath
		if path == "" {
			path = DefaultFilePath()
		}
		fs, err := OpenFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		s = fs
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}

	if opts.EncryptionKey == "" {
		slog.Warn("ENCRYPTION_KEY not set, chat access token will be stored in plaintext", slog.String("component", "store"))
		return s, closeFn, nil
	}
	enc, err := crypto.NewAESEncryptor(opts.EncryptionKey)
	if err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}
	slog.Info("access token sealing enabled (AES-256-GCM)", slog.String("component", "store"))
	return NewSealedStore(s, enc), closeFn, nil
}

func closeDB(db *sql.DB) func() error {
	return func() error { return db.Close() }
}
