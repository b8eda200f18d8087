package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/booking-redis/internal/booking"
	"github.com/booking-redis/internal/config"
	"github.com/booking-redis/internal/postgres"
)

// ArchiveWorker periodically copies committed events and user standings from
// the document store into PostgreSQL. The store stays the source of truth;
// the archive is a write-behind reporting copy.
type ArchiveWorker struct {
	engine  *booking.Engine
	archive *postgres.Repository
	config  *config.ArchiveConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(
	engine *booking.Engine,
	archive *postgres.Repository,
	cfg *config.ArchiveConfig,
	logger *slog.Logger,
) *ArchiveWorker {
	return &ArchiveWorker{
		engine:  engine,
		archive: archive,
		config:  cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background archive process
func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("archive worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background archive process
func (w *ArchiveWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("archive worker stopped")
	return nil
}

// run is the main worker loop
func (w *ArchiveWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.archiveCycle(ctx)
		}
	}
}

// archiveCycle copies new events and current standings into the archive.
func (w *ArchiveWorker) archiveCycle(ctx context.Context) {
	w.logger.Info("starting archive cycle")
	startTime := time.Now()

	eventCount, err := w.archiveEvents(ctx)
	if err != nil {
		w.logger.Error("failed to archive events", "error", err)
	}

	userCount, err := w.archiveStandings(ctx)
	if err != nil {
		w.logger.Error("failed to archive standings", "error", err)
	}

	w.logger.Info("archive cycle completed",
		"duration", time.Since(startTime),
		"events", eventCount,
		"users", userCount,
	)
}

// archiveEvents copies every event. A full copy each cycle keeps archived
// rows of previously open events current once a challenger lands.
func (w *ArchiveWorker) archiveEvents(ctx context.Context) (int, error) {
	events, err := w.engine.ListEvents(ctx)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 500
	}
	for start := 0; start < len(events); start += batchSize {
		end := start + batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := w.archive.UpsertEvents(ctx, events[start:end]); err != nil {
			return 0, err
		}
	}
	return len(events), nil
}

// archiveStandings copies every user's current result counters.
func (w *ArchiveWorker) archiveStandings(ctx context.Context) (int, error) {
	users, err := w.engine.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, nil
	}

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 500
	}
	for start := 0; start < len(users); start += batchSize {
		end := start + batchSize
		if end > len(users) {
			end = len(users)
		}
		if err := w.archive.UpsertStandings(ctx, users[start:end]); err != nil {
			return 0, err
		}
	}
	return len(users), nil
}

// IsRunning returns whether the worker is currently running
func (w *ArchiveWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single archive cycle (useful for manual triggers)
func (w *ArchiveWorker) RunOnce(ctx context.Context) {
	w.archiveCycle(ctx)
}
