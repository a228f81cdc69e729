package app

import (
	"context"

	"github.com/tripfetch/tripfetch/internal/domain"
	"github.com/tripfetch/tripfetch/internal/infra/config"
	"github.com/tripfetch/tripfetch/internal/infra/logger"
)

// Reporter receives the orchestrator's structured events. The leveled
// logger satisfies it; tests substitute a recording fake.
type Reporter interface {
	Info(format string, v ...any)
	Error(format string, v ...any)
}

// Fetcher performs one download attempt for an item.
// This allows the engine to call the fetcher without importing it.
type Fetcher interface {
	Fetch(ctx context.Context, item domain.Item) (string, error)
}

// ExtractPool unpacks a downloaded archive on a bounded worker pool.
type ExtractPool interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// HistoryStore records completed runs. Implementations must tolerate
// being called once per run from the orchestrator goroutine.
type HistoryStore interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Context holds the core environment and shared resources for tripfetch.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
