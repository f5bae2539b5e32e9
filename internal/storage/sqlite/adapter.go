package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/github-star-monitor/internal/domain"
	"github.com/kurihiro0119/github-star-monitor/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(ctx context.Context, dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS star_events (
		id TEXT PRIMARY KEY,
		repo TEXT NOT NULL,
		type TEXT NOT NULL,
		login TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		data TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_star_events_repo_timestamp ON star_events(repo, timestamp);
	CREATE INDEX IF NOT EXISTS idx_star_events_login ON star_events(login);
	CREATE INDEX IF NOT EXISTS idx_star_events_type ON star_events(type);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveEvents saves multiple activity events in one transaction
func (s *sqliteStorage) SaveEvents(ctx context.Context, events []*domain.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO star_events (id, repo, type, login, message, timestamp, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, event := range events {
		if event == nil {
			continue
		}
		dataJSON, err := marshalMember(event.Member)
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx,
			event.ID,
			event.Repo,
			string(event.Type),
			event.Login,
			event.Message,
			event.Timestamp.UTC(),
			dataJSON,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetEvents retrieves events for a repository within a time range
func (s *sqliteStorage) GetEvents(ctx context.Context, repo string, since, until time.Time) ([]*domain.ActivityEvent, error) {
	query := `
		SELECT id, repo, type, login, message, timestamp, data
		FROM star_events
		WHERE repo = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp, id
	`
	rows, err := s.db.QueryContext(ctx, query, repo, since.UTC(), until.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var dataStr string

		if err := rows.Scan(&e.ID, &e.Repo, &e.Type, &e.Login, &e.Message, &e.Timestamp, &dataStr); err != nil {
			return nil, err
		}
		e.Member = unmarshalMember(dataStr)
		events = append(events, &e)
	}

	return events, rows.Err()
}

// CountEvents returns gained and lost totals within a time range
func (s *sqliteStorage) CountEvents(ctx context.Context, repo string, since, until time.Time) (domain.Counts, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0)
		FROM star_events
		WHERE repo = ? AND timestamp >= ? AND timestamp <= ?
	`
	var counts domain.Counts
	err := s.db.QueryRowContext(ctx, query,
		string(domain.EventTypeStarAdded),
		string(domain.EventTypeStarRemoved),
		repo, since.UTC(), until.UTC(),
	).Scan(&counts.Gained, &counts.Lost)
	return counts, err
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

func marshalMember(info *domain.MemberInfo) (string, error) {
	if info == nil {
		return "{}", nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMember(data string) *domain.MemberInfo {
	if data == "" || data == "{}" {
		return nil
	}
	var info domain.MemberInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil
	}
	return &info
}
