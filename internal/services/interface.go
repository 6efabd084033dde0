package services

import (
	"context"

	"bizops-governance/backend/pkg/models"
)

// Governance is the surface the HTTP and MCP layers consume.
type Governance interface {
	EvaluateWorkflow(ctx context.Context, workflowID string) (models.GovernanceHealth, error)
	EnforceWorkflow(ctx context.Context, workflowID string) (*EnforcementResult, error)
	EnforceBusiness(ctx context.Context, businessID string) (*BatchEnforcementResult, error)
	ValidateWorkflow(ctx context.Context, workflowID string) (*ValidationResult, error)
	RemediateViolation(ctx context.Context, workflowID string, violation models.ViolationType) (*RemediationResult, error)

	Escalate(ctx context.Context, req EscalationRequest) (string, error)
	ListEscalations(ctx context.Context, businessID string, status *models.EscalationStatus) ([]*models.EscalationSummary, error)
	ResolveEscalation(ctx context.Context, escalationID, resolution string) error

	GetAutomationSettings(ctx context.Context, businessID string) (*models.AutomationSettings, error)
	UpdateAutomationSettings(ctx context.Context, businessID string, update SettingsUpdate) (*models.AutomationSettings, error)

	ScoreTrend(ctx context.Context, businessID string) (*ScoreTrend, error)
	RunAutomation(ctx context.Context, businessID string) (*AutomationRunResult, error)
}
