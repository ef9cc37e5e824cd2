package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/auth"
	"github.com/lines-of-codes/litestore/config"
	"github.com/lines-of-codes/litestore/database"
	"github.com/lines-of-codes/litestore/filesystem"
	"github.com/lines-of-codes/litestore/s3store"
	"github.com/lines-of-codes/litestore/tasks"
)

// app holds the services shared by the subcommands.
type app struct {
	db       database.Database
	queue    *tasks.Queue
	files    *litestore.FileService
	links    *litestore.LinkService
	accounts *litestore.AccountService
	// content serves signed object URLs; nil for S3.
	content http.Handler
	closers []func() error
}

// openDatabase connects and checks the schema. With migrate set, missing
// tables are created first.
func openDatabase(ctx context.Context, cfg *config.Config, migrate bool) (database.Database, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema (run 'litestore migrate'?): %w", err)
	}

	slog.Info("connected to database", "type", cfg.Database.Type)
	return db, nil
}

func newApp(ctx context.Context, cfg *config.Config, migrate bool) (*app, error) {
	db, err := openDatabase(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}

	a := &app{db: db, closers: []func() error{db.Close}}

	content, err := a.openContentStore(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	hasher := auth.BcryptHasher{Cost: cfg.Auth.BcryptCost}
	a.queue = tasks.NewQueue(cfg.Service.CleanupTimeout)

	a.files, err = litestore.NewFileService(db.TreeRepo(), content, a.queue, litestore.ServiceConfig{
		PresignTimeout: cfg.Storage.PresignTimeout,
		CleanupTimeout: cfg.Service.CleanupTimeout,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.links, err = litestore.NewLinkService(db.TreeRepo(), db.LinkRepo(), content, hasher, cfg.Storage.PresignTimeout)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.accounts, err = litestore.NewAccountService(db.UserRepo(), a.files, hasher)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) openContentStore(ctx context.Context, cfg *config.Config) (litestore.ContentStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		s3cfg := cfg.Storage.S3
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:            s3cfg.Bucket,
			Region:            s3cfg.Region,
			Endpoint:          s3cfg.Endpoint,
			AccessKeyID:       s3cfg.AccessKeyID,
			SecretAccessKey:   s3cfg.SecretAccessKey,
			UsePathStyle:      s3cfg.UsePathStyle,
			PresignExpiry:     cfg.Storage.PresignExpiry,
			DeleteConcurrency: cfg.Storage.DeleteConcurrency,
		})
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			slog.Warn("bucket not reachable", "bucket", s3cfg.Bucket, "err", err)
		}
		slog.Info("using s3 content store", "bucket", s3cfg.Bucket, "endpoint", s3cfg.Endpoint)
		return store, nil

	case "filesystem":
		fscfg := cfg.Storage.Filesystem
		if err := os.MkdirAll(fscfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}

		root, err := os.OpenRoot(fscfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage root: %w", err)
		}
		a.closers = append(a.closers, root.Close)

		keysCfg := fscfg.Keys
		if len(keysCfg.Inline) == 0 && keysCfg.File == "" {
			pair, err := ephemeralKey()
			if err != nil {
				return nil, err
			}
			slog.Warn("no signing keys configured, using a temporary key; signed URLs stop working on restart")
			keysCfg.Inline = []filesystem.KeyPair{pair}
		}

		keys, err := filesystem.NewKeyring(keysCfg)
		if err != nil {
			return nil, err
		}

		store, err := filesystem.NewFileStorage(root, keys, filesystem.Config{
			BaseURL:           fscfg.BaseURL,
			Expiry:            cfg.Storage.PresignExpiry,
			DeleteConcurrency: cfg.Storage.DeleteConcurrency,
		})
		if err != nil {
			return nil, err
		}
		a.content = store.Handler()

		slog.Info("using filesystem content store", "path", fscfg.Path, "base_url", fscfg.BaseURL)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// Close releases the database and storage handles in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func ephemeralKey() (filesystem.KeyPair, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return filesystem.KeyPair{}, fmt.Errorf("generate signing key: %w", err)
	}
	return filesystem.KeyPair{AccessKey: "ephemeral", SecretKey: hex.EncodeToString(secret)}, nil
}

// jwtSecret returns the configured secret, or the one kept in the secret file.
func jwtSecret(cfg *config.Config) ([]byte, error) {
	if cfg.Auth.JWTSecret != "" {
		return []byte(cfg.Auth.JWTSecret), nil
	}
	return auth.LoadOrCreateSecret(cfg.Auth.SecretFile)
}
