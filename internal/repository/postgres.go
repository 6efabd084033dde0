// Package repository persists governance records in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bizops-governance/backend/pkg/models"
)

// Schema creates the governance tables. The integration tests and the
// seed command run it; production deployments are expected to manage
// schema out of band.
const Schema = `
CREATE TABLE IF NOT EXISTS businesses (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL UNIQUE,
	tier TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS workflows (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL REFERENCES businesses(id),
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	tier TEXT NOT NULL DEFAULT '',
	business_tier TEXT NOT NULL DEFAULT '',
	metadata JSONB,
	steps JSONB,
	pipeline JSONB,
	mmr_required BOOLEAN NOT NULL DEFAULT FALSE,
	require_human_review BOOLEAN NOT NULL DEFAULT FALSE,
	governance_health JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS governance_escalations (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL,
	workflow_id UUID NOT NULL,
	violation_type TEXT NOT NULL,
	count INT NOT NULL DEFAULT 1,
	escalated_to TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	resolution TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS automation_settings (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL UNIQUE,
	auto_remediate JSONB NOT NULL,
	escalation_threshold INT NOT NULL DEFAULT 0,
	escalate_to TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_log (
	id UUID PRIMARY KEY,
	business_id UUID NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	priority TEXT NOT NULL,
	read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore is the pgx-backed implementation of Repository.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Repository = (*PostgresStore)(nil)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// GetBusiness retrieves a business by its ID.
func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	var b models.Business
	err := s.db.QueryRow(ctx,
		`SELECT id, name, domain, tier, created_at, updated_at FROM businesses WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.Domain, &b.Tier, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// GetBusinessByDomain retrieves a business by its email domain.
func (s *PostgresStore) GetBusinessByDomain(ctx context.Context, domain string) (*models.Business, error) {
	var b models.Business
	err := s.db.QueryRow(ctx,
		`SELECT id, name, domain, tier, created_at, updated_at FROM businesses WHERE domain = $1`, domain).
		Scan(&b.ID, &b.Name, &b.Domain, &b.Tier, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// ListBusinesses returns every business, oldest first.
func (s *PostgresStore) ListBusinesses(ctx context.Context) ([]*models.Business, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, domain, tier, created_at, updated_at FROM businesses ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var businesses []*models.Business
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Domain, &b.Tier, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		businesses = append(businesses, &b)
	}
	return businesses, rows.Err()
}

// CreateBusiness inserts a business, generating its ID and timestamps.
func (s *PostgresStore) CreateBusiness(ctx context.Context, business *models.Business) error {
	now := time.Now().UTC()
	business.ID = newID(business.ID)
	business.CreatedAt = now
	business.UpdatedAt = now
	if business.Tier == "" {
		business.Tier = models.TierStartup
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO businesses (id, name, domain, tier, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		business.ID, business.Name, business.Domain, business.Tier, business.CreatedAt, business.UpdatedAt)
	return err
}

const workflowColumns = `id, business_id, name, description, region, tier, business_tier,
	metadata, steps, pipeline, mmr_required, require_human_review, governance_health, created_at, updated_at`

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var w models.Workflow
	var metadata, steps, pipeline, health []byte
	err := row.Scan(&w.ID, &w.BusinessID, &w.Name, &w.Description, &w.Region, &w.Tier, &w.BusinessTier,
		&metadata, &steps, &pipeline, &w.MMRRequired, &w.RequireHumanReview, &health, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalInto(metadata, &w.Metadata); err != nil {
		return nil, fmt.Errorf("decode workflow metadata: %w", err)
	}
	if err := unmarshalInto(steps, &w.Steps); err != nil {
		return nil, fmt.Errorf("decode workflow steps: %w", err)
	}
	if err := unmarshalInto(pipeline, &w.Pipeline); err != nil {
		return nil, fmt.Errorf("decode workflow pipeline: %w", err)
	}
	if err := unmarshalInto(health, &w.Health); err != nil {
		return nil, fmt.Errorf("decode workflow health: %w", err)
	}
	return &w, nil
}

// GetWorkflow retrieves a workflow by its ID.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	w, err := scanWorkflow(s.db.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

// ListWorkflowsByBusiness returns every workflow under a business in
// insertion order.
func (s *PostgresStore) ListWorkflowsByBusiness(ctx context.Context, businessID string) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE business_id = $1 ORDER BY created_at, id`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// CreateWorkflow inserts a workflow, generating its ID and timestamps.
func (s *PostgresStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	workflow.ID = newID(workflow.ID)
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	metadata, err := marshalOrNil(workflow.Metadata)
	if err != nil {
		return err
	}
	steps, err := marshalOrNil(workflow.Steps)
	if err != nil {
		return err
	}
	pipeline, err := marshalOrNil(workflow.Pipeline)
	if err != nil {
		return err
	}
	health, err := marshalOrNil(workflow.Health)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO workflows (`+workflowColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		workflow.ID, workflow.BusinessID, workflow.Name, workflow.Description, workflow.Region,
		workflow.Tier, workflow.BusinessTier, metadata, steps, pipeline,
		workflow.MMRRequired, workflow.RequireHumanReview, health, workflow.CreatedAt, workflow.UpdatedAt)
	return err
}

// UpdateWorkflowSteps overwrites the step sequence. Remediated steps
// are always written to the steps column, which normalization prefers
// over pipeline.
func (s *PostgresStore) UpdateWorkflowSteps(ctx context.Context, id string, steps []models.WorkflowStep) error {
	raw, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE workflows SET steps = $2, updated_at = $3 WHERE id = $1`,
		id, raw, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWorkflowHealth overwrites the persisted governance health,
// replacing any prior value.
func (s *PostgresStore) UpdateWorkflowHealth(ctx context.Context, id string, health models.GovernanceHealth) error {
	raw, err := json.Marshal(health)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE workflows SET governance_health = $2, updated_at = $3 WHERE id = $1`,
		id, raw, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWorkflowHealthBatch applies all health updates in a single
// transaction.
func (s *PostgresStore) UpdateWorkflowHealthBatch(ctx context.Context, updates []HealthUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	for _, u := range updates {
		raw, err := json.Marshal(u.Health)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE workflows SET governance_health = $2, updated_at = $3 WHERE id = $1`,
			u.WorkflowID, raw, now); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// InsertEscalation inserts a new escalation row. Every call creates a
// fresh row with count 1.
func (s *PostgresStore) InsertEscalation(ctx context.Context, e *models.GovernanceEscalation) error {
	e.ID = newID(e.ID)
	e.Count = 1
	e.Status = models.EscalationPending
	e.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx,
		`INSERT INTO governance_escalations (id, business_id, workflow_id, violation_type, count, escalated_to, status, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.BusinessID, e.WorkflowID, e.ViolationType, e.Count, e.EscalatedTo, e.Status, e.Notes, e.CreatedAt)
	return err
}

// GetEscalation retrieves an escalation by its ID.
func (s *PostgresStore) GetEscalation(ctx context.Context, id string) (*models.GovernanceEscalation, error) {
	var e models.GovernanceEscalation
	err := s.db.QueryRow(ctx,
		`SELECT id, business_id, workflow_id, violation_type, count, escalated_to, status, notes, resolution, created_at, resolved_at
		 FROM governance_escalations WHERE id = $1`, id).
		Scan(&e.ID, &e.BusinessID, &e.WorkflowID, &e.ViolationType, &e.Count, &e.EscalatedTo,
			&e.Status, &e.Notes, &e.Resolution, &e.CreatedAt, &e.ResolvedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// ListEscalations returns a business's escalations, newest first, each
// enriched with the referenced workflow's name. An optional status
// narrows the result.
func (s *PostgresStore) ListEscalations(ctx context.Context, businessID string, status *models.EscalationStatus) ([]*models.EscalationSummary, error) {
	query := `SELECT e.id, e.business_id, e.workflow_id, e.violation_type, e.count, e.escalated_to,
			e.status, e.notes, e.resolution, e.created_at, e.resolved_at, COALESCE(w.name, '')
		FROM governance_escalations e
		LEFT JOIN workflows w ON w.id = e.workflow_id
		WHERE e.business_id = $1`
	args := []any{businessID}
	if status != nil {
		query += ` AND e.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY e.created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EscalationSummary
	for rows.Next() {
		var e models.EscalationSummary
		err := rows.Scan(&e.ID, &e.BusinessID, &e.WorkflowID, &e.ViolationType, &e.Count, &e.EscalatedTo,
			&e.Status, &e.Notes, &e.Resolution, &e.CreatedAt, &e.ResolvedAt, &e.WorkflowName)
		if err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ResolveEscalation transitions a pending escalation to resolved. The
// status guard in the predicate makes the transition one-way at the
// storage layer as well.
func (s *PostgresStore) ResolveEscalation(ctx context.Context, id, resolution string, resolvedAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE governance_escalations SET status = $2, resolution = $3, resolved_at = $4
		 WHERE id = $1 AND status = $5`,
		id, models.EscalationResolved, resolution, resolvedAt, models.EscalationPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAutomationSettings retrieves a business's automation settings.
func (s *PostgresStore) GetAutomationSettings(ctx context.Context, businessID string) (*models.AutomationSettings, error) {
	var settings models.AutomationSettings
	var remediate []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, business_id, auto_remediate, escalation_threshold, escalate_to, created_at, updated_at
		 FROM automation_settings WHERE business_id = $1`, businessID).
		Scan(&settings.ID, &settings.BusinessID, &remediate,
			&settings.Escalation.Threshold, &settings.Escalation.EscalateTo,
			&settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := unmarshalInto(remediate, &settings.AutoRemediate); err != nil {
		return nil, fmt.Errorf("decode automation settings: %w", err)
	}
	return &settings, nil
}

// UpsertAutomationSettings replaces a business's settings wholesale.
func (s *PostgresStore) UpsertAutomationSettings(ctx context.Context, settings *models.AutomationSettings) error {
	now := time.Now().UTC()
	settings.ID = newID(settings.ID)
	settings.UpdatedAt = now
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	remediate, err := json.Marshal(settings.AutoRemediate)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO automation_settings (id, business_id, auto_remediate, escalation_threshold, escalate_to, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (business_id) DO UPDATE SET
			auto_remediate = EXCLUDED.auto_remediate,
			escalation_threshold = EXCLUDED.escalation_threshold,
			escalate_to = EXCLUDED.escalate_to,
			updated_at = EXCLUDED.updated_at`,
		settings.ID, settings.BusinessID, remediate,
		settings.Escalation.Threshold, settings.Escalation.EscalateTo,
		settings.CreatedAt, settings.UpdatedAt)
	return err
}

// InsertAuditEntry appends one entry to the audit trail.
func (s *PostgresStore) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_log (id, business_id, actor, action, entity_type, entity_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.BusinessID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Details, entry.CreatedAt)
	return err
}

// InsertNotification stores a notification for a user.
func (s *PostgresStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	n.ID = newID(n.ID)
	n.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx,
		`INSERT INTO notifications (id, user_id, title, body, priority, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Title, n.Body, n.Priority, n.Read, n.CreatedAt)
	return err
}

// newID keeps caller-supplied IDs (tests, seed data) and generates one
// otherwise.
func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func marshalOrNil(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalInto(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
