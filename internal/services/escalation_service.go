package services

import (
	"context"
	"fmt"

	"bizops-governance/backend/internal/audit"
	"bizops-governance/backend/internal/auth"
	"bizops-governance/backend/pkg/models"
)

// EscalationRequest carries everything needed to route a violation to
// a human.
type EscalationRequest struct {
	BusinessID    string               `json:"business_id"`
	WorkflowID    string               `json:"workflow_id"`
	ViolationType models.ViolationType `json:"violation_type"`
	EscalatedTo   string               `json:"escalated_to"`
	Notes         string               `json:"notes,omitempty"`
}

// Escalate creates a pending escalation record, notifies the target
// user, and writes an audit entry. Repeated escalations of the same
// violation each create their own row.
func (s *GovernanceService) Escalate(ctx context.Context, req EscalationRequest) (string, error) {
	w, err := s.loadWorkflow(ctx, req.WorkflowID)
	if err != nil {
		return "", err
	}

	escalation := &models.GovernanceEscalation{
		BusinessID:    req.BusinessID,
		WorkflowID:    req.WorkflowID,
		ViolationType: req.ViolationType,
		EscalatedTo:   req.EscalatedTo,
		Notes:         req.Notes,
	}
	if err := s.repo.InsertEscalation(ctx, escalation); err != nil {
		return "", err
	}
	if s.escalations != nil {
		s.escalations.Add(ctx, 1)
	}

	notification := &models.Notification{
		UserID:   req.EscalatedTo,
		Title:    "Governance escalation",
		Body:     fmt.Sprintf("workflow %q has an unresolved %s violation", w.Name, req.ViolationType),
		Priority: models.NotificationPriorityHigh,
	}
	if err := s.repo.InsertNotification(ctx, notification); err != nil {
		// The escalation row is already committed; a lost notification
		// is recoverable from the escalation list.
		if s.logger != nil {
			s.logger.Warn("escalation notification failed", "escalation", escalation.ID, "error", err)
		}
	}

	s.audit.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		Actor:      auth.ActorFromContext(ctx),
		Action:     "governance.escalate",
		EntityType: "escalation",
		EntityID:   escalation.ID,
		Details:    fmt.Sprintf("%s on workflow %s escalated to %s", req.ViolationType, req.WorkflowID, req.EscalatedTo),
	})
	return escalation.ID, nil
}

// ListEscalations returns a business's escalations enriched with
// workflow names, optionally filtered by status.
func (s *GovernanceService) ListEscalations(ctx context.Context, businessID string, status *models.EscalationStatus) ([]*models.EscalationSummary, error) {
	return s.repo.ListEscalations(ctx, businessID, status)
}

// ResolveEscalation transitions a pending escalation to its terminal
// resolved state, stamping the resolution text and timestamp.
func (s *GovernanceService) ResolveEscalation(ctx context.Context, escalationID, resolution string) error {
	escalation, err := s.repo.GetEscalation(ctx, escalationID)
	if err != nil {
		return err
	}
	if escalation.Status != models.EscalationPending {
		return fmt.Errorf("escalation %s is already %s", escalationID, escalation.Status)
	}
	if err := s.repo.ResolveEscalation(ctx, escalationID, resolution, s.now()); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		BusinessID: escalation.BusinessID,
		Actor:      auth.ActorFromContext(ctx),
		Action:     "governance.resolve_escalation",
		EntityType: "escalation",
		EntityID:   escalationID,
		Details:    resolution,
	})
	return nil
}
