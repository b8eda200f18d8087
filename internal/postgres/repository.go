package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/booking-redis/internal/config"
	"github.com/booking-redis/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL-based archive access: committed events and
// user standings copied out of the document store for reporting, plus the
// append-only booking audit log.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events_archive (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			owner_id VARCHAR(64) NOT NULL,
			challenger_id VARCHAR(64),
			begin_at TIMESTAMPTZ,
			begin_date VARCHAR(10),
			created_at TIMESTAMPTZ,
			archived_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_standings (
			user_id VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			win_count INT NOT NULL DEFAULT 0,
			lose_count INT NOT NULL DEFAULT 0,
			draw_count INT NOT NULL DEFAULT 0,
			archived_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS booking_audit (
			id BIGSERIAL PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			actor_id VARCHAR(64),
			event_id VARCHAR(64),
			slot_date VARCHAR(10),
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_archive_begin_date ON events_archive(begin_date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_archive_owner ON events_archive(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_audit_event ON booking_audit(event_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// UpsertEvents copies a batch of events into the archive.
func (r *Repository) UpsertEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO events_archive (id, name, description, owner_id, challenger_id, begin_at, begin_date, created_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET challenger_id = $5, begin_at = $6, begin_date = $7, archived_at = $9
	`
	now := time.Now()

	for _, event := range events {
		var challengerID *string
		if event.ChallengerID != "" {
			challengerID = &event.ChallengerID
		}
		batch.Queue(query,
			event.ID,
			event.Name,
			event.Description,
			event.OwnerID,
			challengerID,
			event.Begin,
			event.BeginDate,
			event.CreatedAt,
			now,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch upserting events: %w", err)
		}
	}
	return nil
}

// UpsertStandings copies a batch of user standings into the archive.
func (r *Repository) UpsertStandings(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO user_standings (user_id, display_name, win_count, lose_count, draw_count, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id)
		DO UPDATE SET display_name = $2, win_count = $3, lose_count = $4, draw_count = $5, archived_at = $6
	`
	now := time.Now()

	for _, user := range users {
		batch.Queue(query,
			user.ID,
			user.DisplayName,
			user.WinCount,
			user.LoseCount,
			user.DrawCount,
			now,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range users {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch upserting standings: %w", err)
		}
	}
	return nil
}

// RecordAudit appends one entry to the booking audit log.
func (r *Repository) RecordAudit(ctx context.Context, entry domain.AuditEntry) error {
	query := `
		INSERT INTO booking_audit (kind, actor_id, event_id, slot_date, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.Kind,
		entry.ActorID,
		entry.EventID,
		entry.Date,
		entry.Detail,
		entry.At,
	)
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns the newest audit entries, newest first.
func (r *Repository) RecentAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	query := `
		SELECT kind, actor_id, event_id, slot_date, detail, created_at
		FROM booking_audit
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		err := rows.Scan(
			&entry.Kind,
			&entry.ActorID,
			&entry.EventID,
			&entry.Date,
			&entry.Detail,
			&entry.At,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ArchivedEventCount returns the number of archived events.
func (r *Repository) ArchivedEventCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events_archive`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting archived events: %w", err)
	}
	return count, nil
}
