package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	"github.com/kurihiro0119/github-star-monitor/internal/storage"
)

const (
	connectAttempts   = 5
	connectMaxElapsed = 30 * time.Second
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(ctx context.Context, connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// ping waits for the server to accept connections, retrying with exponential backoff
func ping(ctx context.Context, db *sql.DB) error {
	operation := func() (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(connectAttempts),
		backoff.WithMaxElapsedTime(connectMaxElapsed))
	return err
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS star_events (
		id TEXT PRIMARY KEY,
		repo TEXT NOT NULL,
		type TEXT NOT NULL,
		login TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_star_events_repo_timestamp ON star_events(repo, timestamp);
	CREATE INDEX IF NOT EXISTS idx_star_events_login ON star_events(login);
	CREATE INDEX IF NOT EXISTS idx_star_events_type ON star_events(type);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveEvents saves multiple activity events in one transaction
func (s *postgresStorage) SaveEvents(ctx context.Context, events []*domain.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO star_events (id, repo, type, login, message, timestamp, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			repo = EXCLUDED.repo,
			type = EXCLUDED.type,
			login = EXCLUDED.login,
			message = EXCLUDED.message,
			timestamp = EXCLUDED.timestamp,
			data = EXCLUDED.data
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, event := range events {
		if event == nil {
			continue
		}
		dataJSON := []byte("{}")
		if event.Member != nil {
			if dataJSON, err = json.Marshal(event.Member); err != nil {
				return err
			}
		}

		_, err = stmt.ExecContext(ctx,
			event.ID,
			event.Repo,
			string(event.Type),
			event.Login,
			event.Message,
			event.Timestamp,
			string(dataJSON),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetEvents retrieves events for a repository within a time range
func (s *postgresStorage) GetEvents(ctx context.Context, repo string, since, until time.Time) ([]*domain.ActivityEvent, error) {
	query := `
		SELECT id, repo, type, login, message, timestamp, data
		FROM star_events
		WHERE repo = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp, id
	`
	rows, err := s.db.QueryContext(ctx, query, repo, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var data []byte

		if err := rows.Scan(&e.ID, &e.Repo, &e.Type, &e.Login, &e.Message, &e.Timestamp, &data); err != nil {
			return nil, err
		}
		if len(data) > 0 && string(data) != "{}" {
			var info domain.MemberInfo
			if err := json.Unmarshal(data, &info); err == nil {
				e.Member = &info
			}
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// CountEvents returns gained and lost totals within a time range
func (s *postgresStorage) CountEvents(ctx context.Context, repo string, since, until time.Time) (domain.Counts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE type = $1),
			COUNT(*) FILTER (WHERE type = $2)
		FROM star_events
		WHERE repo = $3 AND timestamp >= $4 AND timestamp <= $5
	`
	var counts domain.Counts
	err := s.db.QueryRowContext(ctx, query,
		string(domain.EventTypeStarAdded),
		string(domain.EventTypeStarRemoved),
		repo, since, until,
	).Scan(&counts.Gained, &counts.Lost)
	return counts, err
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
