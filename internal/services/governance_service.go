// Package services implements the governance operations over the
// repository: enforcement, remediation, escalation, settings, and the
// automation sweep.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"bizops-governance/backend/internal/audit"
	"bizops-governance/backend/internal/auth"
	"bizops-governance/backend/internal/governance"
	"bizops-governance/backend/internal/repository"
	"bizops-governance/backend/pkg/models"
)

// Compliance threshold: workflows at or above this score count as
// compliant in trend aggregation.
const compliantScore = 80

// Logger matches the application logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// EnforcementResult is the compact summary returned after persisting a
// workflow's health.
type EnforcementResult struct {
	Score     int            `json:"score"`
	Issues    []models.Issue `json:"issues"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WorkflowScore is one row of a batch enforcement result.
type WorkflowScore struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// BatchEnforcementResult summarizes enforcement across a business.
type BatchEnforcementResult struct {
	Count   int             `json:"count"`
	Updated []WorkflowScore `json:"updated"`
}

// ValidationResult is the pre-submit gate: OK iff the evaluation
// produced no error-severity issues. Nothing is persisted.
type ValidationResult struct {
	OK     bool                    `json:"ok"`
	Health models.GovernanceHealth `json:"health"`
}

// RemediationResult reports whether a remediation changed the workflow.
type RemediationResult struct {
	Remediated bool   `json:"remediated"`
	Action     string `json:"action"`
}

// GovernanceService is the concrete Governance implementation.
type GovernanceService struct {
	repo   repository.Repository
	audit  audit.Recorder
	logger Logger
	now    func() time.Time

	enforcements metric.Int64Counter
	remediations metric.Int64Counter
	escalations  metric.Int64Counter
}

// NewGovernanceService creates a GovernanceService.
func NewGovernanceService(repo repository.Repository, recorder audit.Recorder, logger Logger) *GovernanceService {
	meter := otel.Meter("bizops-governance/backend/services")
	enforcements, err := meter.Int64Counter("governance.enforcements",
		metric.WithDescription("Workflow health evaluations persisted"))
	if err != nil && logger != nil {
		logger.Warn("failed to create enforcement counter", "error", err)
	}
	remediations, err := meter.Int64Counter("governance.remediations",
		metric.WithDescription("Auto-remediations that mutated a workflow"))
	if err != nil && logger != nil {
		logger.Warn("failed to create remediation counter", "error", err)
	}
	escalations, err := meter.Int64Counter("governance.escalations",
		metric.WithDescription("Escalations routed to a human"))
	if err != nil && logger != nil {
		logger.Warn("failed to create escalation counter", "error", err)
	}

	return &GovernanceService{
		repo:         repo,
		audit:        recorder,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		enforcements: enforcements,
		remediations: remediations,
		escalations:  escalations,
	}
}

var _ Governance = (*GovernanceService)(nil)

func (s *GovernanceService) loadWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	w, err := s.repo.GetWorkflow(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("workflow %s: %w", id, repository.ErrNotFound)
		}
		return nil, err
	}
	return w, nil
}

// EvaluateWorkflow runs the evaluator without persisting anything.
func (s *GovernanceService) EvaluateWorkflow(ctx context.Context, workflowID string) (models.GovernanceHealth, error) {
	w, err := s.loadWorkflow(ctx, workflowID)
	if err != nil {
		return models.GovernanceHealth{}, err
	}
	return governance.Evaluate(w, s.now()), nil
}

// EnforceWorkflow evaluates one workflow and overwrites its persisted
// health with the result.
func (s *GovernanceService) EnforceWorkflow(ctx context.Context, workflowID string) (*EnforcementResult, error) {
	w, err := s.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	health := governance.Evaluate(w, s.now())
	if err := s.repo.UpdateWorkflowHealth(ctx, workflowID, health); err != nil {
		return nil, err
	}
	if s.enforcements != nil {
		s.enforcements.Add(ctx, 1)
	}
	return &EnforcementResult{Score: health.Score, Issues: health.Issues, UpdatedAt: health.UpdatedAt}, nil
}

// EnforceBusiness evaluates every workflow under a business. All
// evaluations run first, purely; the writes then land in a single
// transaction, so no partial batch is ever visible.
func (s *GovernanceService) EnforceBusiness(ctx context.Context, businessID string) (*BatchEnforcementResult, error) {
	workflows, err := s.repo.ListWorkflowsByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updates := make([]repository.HealthUpdate, 0, len(workflows))
	scores := make([]WorkflowScore, 0, len(workflows))
	for _, w := range workflows {
		health := governance.Evaluate(w, now)
		updates = append(updates, repository.HealthUpdate{WorkflowID: w.ID, Health: health})
		scores = append(scores, WorkflowScore{ID: w.ID, Score: health.Score})
	}

	if err := s.repo.UpdateWorkflowHealthBatch(ctx, updates); err != nil {
		return nil, err
	}
	if s.enforcements != nil {
		s.enforcements.Add(ctx, int64(len(updates)))
	}
	return &BatchEnforcementResult{Count: len(scores), Updated: scores}, nil
}

// ValidateWorkflow evaluates without persisting and reports whether
// the workflow would pass an error-free gate.
func (s *GovernanceService) ValidateWorkflow(ctx context.Context, workflowID string) (*ValidationResult, error) {
	health, err := s.EvaluateWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return &ValidationResult{OK: !health.HasErrors(), Health: health}, nil
}

// remediationTier resolves the tier used for remediation minimums: the
// workflow's own chain first, then the owning business, defaulting to
// solopreneur when nothing resolves.
func (s *GovernanceService) remediationTier(ctx context.Context, w *models.Workflow) models.Tier {
	if tier, ok := governance.ResolveTier(w); ok {
		return tier
	}
	if business, err := s.repo.GetBusiness(ctx, w.BusinessID); err == nil && business.Tier != "" {
		return business.Tier
	}
	return models.TierSolopreneur
}

// RemediateViolation mutates a workflow's steps to fix one violation
// class and records the change in the audit trail. It deliberately
// does not re-evaluate health; callers re-trigger enforcement.
func (s *GovernanceService) RemediateViolation(ctx context.Context, workflowID string, violation models.ViolationType) (*RemediationResult, error) {
	w, err := s.loadWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	tier := s.remediationTier(ctx, w)
	steps, remediated, action := governance.Remediate(governance.NormalizeSteps(w), tier, violation)
	if !remediated {
		return &RemediationResult{Remediated: false, Action: action}, nil
	}

	if err := s.repo.UpdateWorkflowSteps(ctx, workflowID, steps); err != nil {
		return nil, err
	}
	if s.remediations != nil {
		s.remediations.Add(ctx, 1)
	}
	s.audit.Record(ctx, audit.Event{
		BusinessID: w.BusinessID,
		Actor:      auth.ActorFromContext(ctx),
		Action:     "governance.remediate",
		EntityType: "workflow",
		EntityID:   workflowID,
		Details:    fmt.Sprintf("%s: %s", violation, action),
	})
	return &RemediationResult{Remediated: true, Action: action}, nil
}
