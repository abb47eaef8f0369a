package backend

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/store/memory"
)

const defaultProbeTimeout = 3 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	open   func(ctx context.Context, dialect storage.Dialect, dsn string) (*storage.Repository, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		open:   storage.Open,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	case SQLiteBackend:
		return f.createRelationalBackend(ctx, storage.SQLite, config.SQLiteDBPath)
	case PostgresBackend:
		return f.createRelationalBackend(ctx, storage.Postgres, config.DatabaseURL)
	case AutoBackend:
		return f.createAutoBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	st, err := memory.NewSeeded()
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", log.FieldBackend, MemoryBackend.String())

	return &BackendResult{Store: st, Kind: MemoryBackend, Cleanup: st.Close}, nil
}

func (f *DefaultFactory) createRelationalBackend(ctx context.Context, dialect storage.Dialect, dsn string) (*BackendResult, error) {
	repo, err := f.open(ctx, dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", dialect, err)
	}

	f.logger.InfoContext(ctx, "Initialized relational backend", log.FieldBackend, string(dialect))

	return &BackendResult{Store: repo, Kind: BackendType(dialect), Cleanup: repo.Close}, nil
}

// createAutoBackend tries the relational database within the probe
// timeout and falls back to the seeded memory store when it is unreachable.
// DatabaseURL wins over the SQLite path.
func (f *DefaultFactory) createAutoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dialect, dsn := storage.SQLite, config.SQLiteDBPath
	if config.DatabaseURL != "" {
		dialect, dsn = storage.Postgres, config.DatabaseURL
	}

	timeout := config.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := f.createRelationalBackend(probeCtx, dialect, dsn)
	if err == nil {
		return res, nil
	}

	f.logger.WarnContext(ctx, "Relational backend unavailable, falling back to memory store",
		"dialect", string(dialect),
		"probe_timeout", timeout,
		log.FieldError, err)
	return f.createMemoryBackend(ctx)
}
