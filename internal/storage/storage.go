package storage

import (
	"context"
	"time"

	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/storage/sqlite"
	"github.com/stackspy/stackspy/internal/types"
)

// AlertFilter narrows alert history queries
type AlertFilter = sqlite.AlertFilter

// Storage defines the interface for the persistence backend
type Storage interface {
	// Tools
	CreateTool(ctx context.Context, tool *types.Tool) error
	GetTool(ctx context.Context, id string) (*types.Tool, error)
	ListTools(ctx context.Context) ([]*types.Tool, error)
	ListDueTools(ctx context.Context, tier types.Priority, olderThan time.Time) ([]*types.Tool, error)
	SetToolPaused(ctx context.Context, id string, paused bool) error
	UpdateToolSnapshot(ctx context.Context, id string, snapshot *types.Snapshot, analyzedAt time.Time) error

	// Jobs
	SaveJob(ctx context.Context, job *types.BatchJob) error
	GetJob(ctx context.Context, id string) (*types.BatchJob, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*types.BatchJob, error)

	// Alerts
	SaveAlert(ctx context.Context, alert *alerts.Alert) error
	GetAlert(ctx context.Context, id string) (*alerts.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*alerts.Alert, error)
	AcknowledgeAlert(ctx context.Context, id, user string) error

	// Alert rules
	SaveRule(ctx context.Context, rule *alerts.AlertRule) error
	ListRules(ctx context.Context) ([]*alerts.AlertRule, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string
}

// DefaultConfig returns a config with the default database path
func DefaultConfig() *Config {
	return &Config{Path: ".stackspy/stackspy.db"}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".stackspy/stackspy.db"
	}
	return sqlite.New(cfg.Path)
}
