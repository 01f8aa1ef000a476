package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/faultline/internal/core/config"
	redisclient "github.com/vietddude/faultline/internal/infra/redis"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
	"github.com/vietddude/faultline/internal/infra/storage/postgres"
	"github.com/vietddude/faultline/internal/infra/storage/sqlite"
)

// Sink is the opened occurrence repository plus its cleanup.
type Sink struct {
	Repo     storage.OccurrenceRepository
	Postgres *postgres.DB
	close    func() error
}

// Close releases the underlying database.
func (s *Sink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenSink opens the configured occurrence sink and applies migrations.
func OpenSink(ctx context.Context, cfg *config.AppConfig, mem *memory.MemoryStorage) (*Sink, error) {
	switch cfg.Sink.Driver {
	case config.SinkPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		slog.Info("Using PostgreSQL occurrence sink")
		return &Sink{Repo: postgres.NewOccurrenceRepo(db), Postgres: db, close: db.Close}, nil

	case config.SinkSQLite:
		s, err := sqlite.Open(ctx, cfg.Sink.SQLite)
		if err != nil {
			return nil, fmt.Errorf("failed to init sqlite: %w", err)
		}
		slog.Info("Using SQLite occurrence sink", "path", cfg.Sink.SQLite.Path)
		return &Sink{Repo: s, close: s.Close}, nil

	default:
		slog.Info("Using Memory occurrence sink")
		return &Sink{Repo: memory.NewOccurrenceRepo(mem)}, nil
	}
}

// StateStore is the opened shared alerting state plus its cleanup.
type StateStore struct {
	storage.StateStore
	Shared bool
	close  func() error
}

// Close releases the Redis connection, if any.
func (s *StateStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStateStore connects to Redis when configured. Without Redis, or when it
// is unreachable at startup, dedup state is kept in process.
func OpenStateStore(cfg *config.AppConfig, mem *memory.MemoryStorage) *StateStore {
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err == nil {
			slog.Info("Using Redis state store")
			return &StateStore{StateStore: redisclient.NewStateStore(client), Shared: true, close: client.Close}
		}
		slog.Warn("Failed to connect to Redis, falling back to in-process state", "error", err)
	}
	slog.Info("Using Memory state store")
	return &StateStore{StateStore: memory.NewStateStore(mem)}
}
