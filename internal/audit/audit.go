// Package audit provides the single collaborator all governance
// mutations use to write audit-trail entries, instead of ad hoc
// inserts scattered across the mutation paths.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bizops-governance/backend/pkg/models"
)

// Event is what a mutation reports to the audit trail.
type Event struct {
	BusinessID string
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Details    string
}

// Recorder records audit events. Recording is best-effort: the primary
// mutation has already committed by the time Record runs, so failures
// are logged, never propagated.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Store is the persistence surface the repository-backed recorder needs.
type Store interface {
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// Logger matches the application logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// StoreRecorder writes audit events to the repository.
type StoreRecorder struct {
	store  Store
	logger Logger
}

// NewStoreRecorder creates a repository-backed Recorder.
func NewStoreRecorder(store Store, logger Logger) *StoreRecorder {
	return &StoreRecorder{store: store, logger: logger}
}

// Record persists one audit entry. When the acting user could not be
// resolved the entry is skipped rather than written with an empty
// actor; that skip is deliberate and visible to tests.
func (r *StoreRecorder) Record(ctx context.Context, event Event) {
	if event.Actor == "" {
		if r.logger != nil {
			r.logger.Warn("audit entry skipped, no actor resolved", "action", event.Action, "entity", event.EntityID)
		}
		return
	}
	entry := &models.AuditEntry{
		ID:         uuid.New().String(),
		BusinessID: event.BusinessID,
		Actor:      event.Actor,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Details:    event.Details,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.InsertAuditEntry(ctx, entry); err != nil && r.logger != nil {
		r.logger.Warn("audit entry write failed", "action", event.Action, "error", err)
	}
}

var _ Recorder = (*StoreRecorder)(nil)
