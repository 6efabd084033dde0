package repository

import (
	"context"
	"errors"
	"time"

	"bizops-governance/backend/pkg/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// HealthUpdate pairs a workflow with its freshly computed health for
// batch persistence.
type HealthUpdate struct {
	WorkflowID string
	Health     models.GovernanceHealth
}

// Repository is the persistence surface of the governance service.
type Repository interface {
	// Businesses
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	GetBusinessByDomain(ctx context.Context, domain string) (*models.Business, error)
	ListBusinesses(ctx context.Context) ([]*models.Business, error)
	CreateBusiness(ctx context.Context, business *models.Business) error

	// Workflows
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflowsByBusiness(ctx context.Context, businessID string) ([]*models.Workflow, error)
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	UpdateWorkflowSteps(ctx context.Context, id string, steps []models.WorkflowStep) error
	UpdateWorkflowHealth(ctx context.Context, id string, health models.GovernanceHealth) error
	// UpdateWorkflowHealthBatch applies every update in one
	// transaction; either all workflows get their new health or none do.
	UpdateWorkflowHealthBatch(ctx context.Context, updates []HealthUpdate) error

	// Escalations
	InsertEscalation(ctx context.Context, escalation *models.GovernanceEscalation) error
	GetEscalation(ctx context.Context, id string) (*models.GovernanceEscalation, error)
	ListEscalations(ctx context.Context, businessID string, status *models.EscalationStatus) ([]*models.EscalationSummary, error)
	ResolveEscalation(ctx context.Context, id, resolution string, resolvedAt time.Time) error

	// Automation settings
	GetAutomationSettings(ctx context.Context, businessID string) (*models.AutomationSettings, error)
	UpsertAutomationSettings(ctx context.Context, settings *models.AutomationSettings) error

	// Audit and notifications
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	InsertNotification(ctx context.Context, notification *models.Notification) error
}
