package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/booking-redis/internal/domain"
	"github.com/booking-redis/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// identityHeader carries the already-authenticated caller identity. The
// authentication collaborator in front of this service is trusted to set it.
const identityHeader = "X-User-ID"

// Audit listing bounds. limit defaults to defaultAuditLimit and is capped at
// maxAuditLimit regardless of what the request asks for.
const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditLister reads back the archived audit log. May be absent.
type AuditLister interface {
	RecentAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// Handler provides HTTP handlers for the booking API
type Handler struct {
	service *service.BookingService
	audit   AuditLister
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler. audit may be nil.
func NewHandler(service *service.BookingService, audit AuditLister, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		audit:   audit,
		logger:  logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// User operations
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Patch("/", h.UpdateUser)
				r.Delete("/", h.DeleteUser)
			})
		})

		// Event operations
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/", h.ListEvents)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", h.GetEvent)
				r.Post("/challenge", h.ChallengeEvent)
			})
		})

		// Freetime operations
		r.Route("/freetime", func(r chi.Router) {
			r.Post("/", h.AddFreetime)
			r.Post("/remove", h.RemoveFreetime)
			r.Get("/", h.ListFreetime)
			r.Get("/{userID}", h.GetFreetime)
		})

		// Match results
		r.Post("/results", h.RecordResult)

		// Archived audit log
		r.Get("/audit", h.GetAudit)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-User-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses: validation
// 400, not-found 404, conflict 409, persistence 503.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsConflict(err):
		h.writeError(w, http.StatusConflict, err)
	case domain.IsPersistence(err):
		h.logger.Error("store failure", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, err)
	default:
		h.logger.Error("unexpected failure", "error", err)
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

// callerID extracts the authenticated identity, writing 401 when absent.
func (h *Handler) callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(identityHeader)
	if id == "" {
		h.writeError(w, http.StatusUnauthorized, &domain.ValidationError{Reason: "missing caller identity"})
		return "", false
	}
	return id, true
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	DisplayName string `json:"display_name"`
	IconURL     string `json:"icon_url,omitempty"`
}

// CreateUser registers the calling identity as a user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed request body"})
		return
	}
	if req.DisplayName == "" {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "empty display name"})
		return
	}

	if err := h.service.Engine().AddUser(r.Context(), callerID, req.DisplayName, req.IconURL); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"id": callerID},
	})
}

// GetUser returns a user by id
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Engine().GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, user)
}

// UpdateUser applies a partial profile update
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.callerID(w, r); !ok {
		return
	}

	var upd domain.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed request body"})
		return
	}

	if err := h.service.Engine().UpdateUser(r.Context(), chi.URLParam(r, "userID"), upd); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "updated"})
}

// DeleteUser removes a user
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.callerID(w, r); !ok {
		return
	}

	if err := h.service.Engine().DeleteUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// CreateEventRequest is the body of POST /events
type CreateEventRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateEvent creates an open event owned by the caller
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed request body"})
		return
	}

	id, err := h.service.CreateEvent(r.Context(), callerID, req.Name, req.Description)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"id": id},
	})
}

// ListEvents returns events, optionally filtered by booked date, openness,
// or creation instant
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine := h.service.Engine()

	var (
		events []domain.Event
		err    error
	)
	switch {
	case r.URL.Query().Get("date") != "":
		events, err = engine.ListEventsOn(ctx, r.URL.Query().Get("date"))
	case r.URL.Query().Get("open") == "true":
		events, err = engine.ListOpenEvents(ctx)
	case r.URL.Query().Get("since") != "":
		var since time.Time
		since, err = time.Parse(time.RFC3339, r.URL.Query().Get("since"))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed since instant"})
			return
		}
		events, err = engine.ListEventsCreatedAfter(ctx, since)
	default:
		events, err = engine.ListEvents(ctx)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, events)
}

// GetEvent returns an event by id
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.Engine().GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, event)
}

// ChallengeRequest is the body of POST /events/{eventID}/challenge
type ChallengeRequest struct {
	Begin time.Time `json:"begin"`
}

// ChallengeEvent claims a slot on an open event for the caller
func (h *Handler) ChallengeEvent(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Begin.IsZero() {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed begin instant"})
		return
	}

	challenged, err := h.service.ChallengeToEvent(r.Context(), callerID, req.Begin, chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]bool{"challenged": challenged})
}

// FreetimeRequest is the body of POST /freetime and POST /freetime/remove
type FreetimeRequest struct {
	Times []time.Time `json:"times"`
}

// AddFreetime offers the given instants as open slots for the caller
func (h *Handler) AddFreetime(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req FreetimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed request body"})
		return
	}

	if err := h.service.AddFreetime(r.Context(), callerID, req.Times); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "added"})
}

// RemoveFreetime withdraws open slots for the caller
func (h *Handler) RemoveFreetime(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req FreetimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed request body"})
		return
	}

	if err := h.service.RemoveFreetime(r.Context(), callerID, req.Times); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "removed"})
}

// ListFreetime returns every user's freetime record for a date
func (h *Handler) ListFreetime(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "missing date parameter"})
		return
	}

	records, err := h.service.Engine().ListFreetime(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, records)
}

// GetFreetime returns one user's freetime record for a date
func (h *Handler) GetFreetime(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "missing date parameter"})
		return
	}

	record, err := h.service.Engine().GetFreetime(r.Context(), date, chi.URLParam(r, "userID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, record)
}

// RecordResult applies a finished event's outcome
func (h *Handler) RecordResult(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.callerID(w, r); !ok {
		return
	}

	var result domain.MatchResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		h.writeError(w, http.StatusBadRequest, &domain.ValidationError{Reason: "malformed request body"})
		return
	}

	if err := h.service.ApplyResult(r.Context(), result); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "recorded"})
}

// GetAudit returns the newest archived audit entries
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.writeError(w, http.StatusNotFound, &domain.NotFoundError{Kind: "audit log"})
		return
	}

	limit := defaultAuditLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	entries, err := h.audit.RecentAudit(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list audit entries", "error", err)
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeSuccess(w, entries)
}
