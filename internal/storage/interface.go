package storage

import (
	"context"
	"time"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
)

// Storage is the abstract interface for the activity archive
type Storage interface {
	// SaveEvents upserts events by id
	SaveEvents(ctx context.Context, events []*domain.ActivityEvent) error

	// GetEvents returns events for repo in [since, until], oldest first
	GetEvents(ctx context.Context, repo string, since, until time.Time) ([]*domain.ActivityEvent, error)

	// CountEvents returns gained and lost totals for repo in [since, until]
	CountEvents(ctx context.Context, repo string, since, until time.Time) (domain.Counts, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}

// Supported storage types
const (
	TypeNone     = "none"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)
