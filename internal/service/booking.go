package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/booking-redis/internal/booking"
	"github.com/booking-redis/internal/domain"
)

// Archive is the durable reporting sink. The audit log is best-effort: a
// failed archive write never fails the booking operation it follows.
type Archive interface {
	RecordAudit(ctx context.Context, entry domain.AuditEntry) error
}

// BookingService fronts the booking engine for the request layer and the
// result consumer. It records audit entries after commits; the engine's
// transaction bodies stay free of side effects because they may re-execute
// on conflict retry.
type BookingService struct {
	engine  *booking.Engine
	archive Archive
	logger  *slog.Logger
}

// NewBookingService creates a booking service. archive may be nil.
func NewBookingService(engine *booking.Engine, archive Archive, logger *slog.Logger) *BookingService {
	return &BookingService{
		engine:  engine,
		archive: archive,
		logger:  logger,
	}
}

// Engine exposes the underlying engine for read paths.
func (s *BookingService) Engine() *booking.Engine {
	return s.engine
}

// CreateEvent creates an open event and returns its id.
func (s *BookingService) CreateEvent(ctx context.Context, callerID, name, description string) (string, error) {
	id, err := s.engine.CreateEvent(ctx, callerID, name, description)
	if err != nil {
		return "", err
	}
	s.audit(ctx, domain.AuditEntry{Kind: domain.AuditEventCreated, ActorID: callerID, EventID: id})
	return id, nil
}

// ChallengeToEvent claims the slot at begin on the named event for callerID.
func (s *BookingService) ChallengeToEvent(ctx context.Context, callerID string, begin time.Time, eventID string) (bool, error) {
	ok, err := s.engine.ChallengeToEvent(ctx, callerID, begin, eventID)
	if err != nil {
		return false, err
	}
	s.audit(ctx, domain.AuditEntry{
		Kind:    domain.AuditEventChallenged,
		ActorID: callerID,
		EventID: eventID,
		Date:    s.engine.Zone().Date(begin),
		Detail:  s.engine.Zone().HHMM(begin),
	})
	return ok, nil
}

// AddFreetime offers the given instants as open slots for callerID.
func (s *BookingService) AddFreetime(ctx context.Context, callerID string, times []time.Time) error {
	if err := s.engine.AddFreetime(ctx, callerID, times); err != nil {
		return err
	}
	s.audit(ctx, domain.AuditEntry{
		Kind:    domain.AuditFreetimeAdded,
		ActorID: callerID,
		Date:    s.engine.Zone().Date(times[0]),
	})
	return nil
}

// RemoveFreetime withdraws the given open slots for callerID.
func (s *BookingService) RemoveFreetime(ctx context.Context, callerID string, times []time.Time) error {
	if err := s.engine.RemoveFreetime(ctx, callerID, times); err != nil {
		return err
	}
	s.audit(ctx, domain.AuditEntry{
		Kind:    domain.AuditFreetimeRemoved,
		ActorID: callerID,
		Date:    s.engine.Zone().Date(times[0]),
	})
	return nil
}

// ApplyResult records a finished event's outcome on the participants' result
// counters. On a draw both participants' draw counters move; otherwise the
// winner's win counter and the loser's lose counter do.
func (s *BookingService) ApplyResult(ctx context.Context, result domain.MatchResult) error {
	if result.EventID == "" {
		return &domain.ValidationError{Reason: "empty event id in result"}
	}

	event, err := s.engine.GetEvent(ctx, result.EventID)
	if err != nil {
		return err
	}
	if event.Open() {
		return &domain.ConflictError{Reason: "result for an unchallenged event"}
	}

	if result.Draw {
		if err := s.engine.IncrementDraw(ctx, event.OwnerID); err != nil {
			return err
		}
		if err := s.engine.IncrementDraw(ctx, event.ChallengerID); err != nil {
			return err
		}
	} else {
		if result.WinnerID == "" || result.LoserID == "" {
			return &domain.ValidationError{Reason: "result needs winner and loser, or draw"}
		}
		if err := s.engine.IncrementWin(ctx, result.WinnerID); err != nil {
			return err
		}
		if err := s.engine.IncrementLose(ctx, result.LoserID); err != nil {
			return err
		}
	}

	s.audit(ctx, domain.AuditEntry{
		Kind:    domain.AuditResultRecorded,
		ActorID: result.WinnerID,
		EventID: result.EventID,
	})
	return nil
}

// ApplyResultBatch applies each result, continuing past individual failures.
func (s *BookingService) ApplyResultBatch(ctx context.Context, results []domain.MatchResult) error {
	for _, result := range results {
		if err := s.ApplyResult(ctx, result); err != nil {
			s.logger.Error("failed to apply result in batch",
				"event_id", result.EventID,
				"error", err,
			)
			// Continue processing other results
		}
	}
	return nil
}

func (s *BookingService) audit(ctx context.Context, entry domain.AuditEntry) {
	if s.archive == nil {
		return
	}
	entry.At = time.Now()
	if err := s.archive.RecordAudit(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry", "kind", entry.Kind, "error", err)
	}
}
