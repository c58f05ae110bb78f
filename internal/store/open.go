// Package store selects and opens the RecordStore backend once at startup.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/database"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/store/docstore"
	"github.com/MarcoPoloResearchLab/snippets/backend/internal/store/sqlstore"
	"go.uber.org/zap"
)

// Backend names a RecordStore implementation.
type Backend string

const (
	BackendAuto       Backend = "auto"
	BackendSQLite     Backend = "sqlite"
	BackendPostgres   Backend = "postgres"
	BackendFilesystem Backend = "filesystem"
	BackendLocalStore Backend = "localstore"
	BackendS3         Backend = "s3"
)

// Config carries the settings of every backend; only the selected one is used.
type Config struct {
	Backend        string
	Database       database.Config
	FilesDir       string
	LocalStorePath string
	S3             docstore.S3Config
}

// Handle owns an opened store and whatever connection backs it.
type Handle struct {
	Store   library.RecordStore
	Backend Backend
	// Shared reports whether other processes may write the same data.
	Shared bool
	close  func() error
}

func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// ResolveBackend resolves "auto" from the configured environment: a bucket selects S3,
// a files directory selects the filesystem, a postgres driver selects
// Postgres, and anything else falls back to the embedded SQLite file.
func ResolveBackend(cfg Config) (Backend, error) {
	requested := Backend(strings.ToLower(strings.TrimSpace(cfg.Backend)))
	switch requested {
	case BackendSQLite, BackendPostgres, BackendFilesystem, BackendLocalStore, BackendS3:
		return requested, nil
	case BackendAuto, "":
	default:
		return "", fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	switch {
	case strings.TrimSpace(cfg.S3.Bucket) != "":
		return BackendS3, nil
	case strings.TrimSpace(cfg.FilesDir) != "":
		return BackendFilesystem, nil
	case strings.EqualFold(strings.TrimSpace(cfg.Database.Driver), database.DriverPostgres):
		return BackendPostgres, nil
	default:
		return BackendSQLite, nil
	}
}

// Open resolves the backend and opens it.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, err := ResolveBackend(cfg)
	if err != nil {
		return nil, err
	}

	var handle *Handle
	switch backend {
	case BackendSQLite, BackendPostgres:
		dbConfig := cfg.Database
		dbConfig.Driver = string(backend)
		db, err := database.Open(dbConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", backend, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		handle = &Handle{
			Store:  sqlstore.New(db, logger),
			Shared: backend == BackendPostgres,
			close:  sqlDB.Close,
		}
	case BackendFilesystem:
		directory, err := docstore.NewDirectoryBackend(nil, cfg.FilesDir)
		if err != nil {
			return nil, fmt.Errorf("open filesystem store: %w", err)
		}
		handle = &Handle{Store: docstore.New(directory, logger)}
	case BackendLocalStore:
		keyValue, err := docstore.NewKeyValueBackend(nil, cfg.LocalStorePath)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		handle = &Handle{Store: docstore.New(keyValue, logger)}
	case BackendS3:
		client, err := docstore.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("configure s3 client: %w", err)
		}
		objects, err := docstore.NewS3Backend(client, cfg.S3.Bucket, cfg.S3.Prefix)
		if err != nil {
			return nil, err
		}
		handle = &Handle{Store: docstore.New(objects, logger), Shared: true}
	}

	handle.Backend = backend
	logger.Info("record store opened", zap.String("backend", string(backend)))
	return handle, nil
}
