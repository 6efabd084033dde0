package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizops-governance/backend/internal/audit"
	"bizops-governance/backend/internal/auth"
	"bizops-governance/backend/internal/repository"
	"bizops-governance/backend/pkg/models"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	businesses    map[string]*models.Business
	workflows     map[string]*models.Workflow
	workflowOrder []string
	escalations   map[string]*models.GovernanceEscalation
	settings      map[string]*models.AutomationSettings
	auditEntries  []*models.AuditEntry
	notifications []*models.Notification
	batchCalls    int
	nextID        int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		businesses:  make(map[string]*models.Business),
		workflows:   make(map[string]*models.Workflow),
		escalations: make(map[string]*models.GovernanceEscalation),
		settings:    make(map[string]*models.AutomationSettings),
	}
}

func (f *fakeRepo) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeRepo) GetBusiness(_ context.Context, id string) (*models.Business, error) {
	if b, ok := f.businesses[id]; ok {
		return b, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) GetBusinessByDomain(_ context.Context, domain string) (*models.Business, error) {
	for _, b := range f.businesses {
		if b.Domain == domain {
			return b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) ListBusinesses(_ context.Context) ([]*models.Business, error) {
	var out []*models.Business
	for _, b := range f.businesses {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeRepo) CreateBusiness(_ context.Context, b *models.Business) error {
	if b.ID == "" {
		b.ID = f.id("biz")
	}
	f.businesses[b.ID] = b
	return nil
}

func (f *fakeRepo) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	if w, ok := f.workflows[id]; ok {
		return w, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) ListWorkflowsByBusiness(_ context.Context, businessID string) ([]*models.Workflow, error) {
	var out []*models.Workflow
	for _, id := range f.workflowOrder {
		if f.workflows[id].BusinessID == businessID {
			out = append(out, f.workflows[id])
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateWorkflow(_ context.Context, w *models.Workflow) error {
	if w.ID == "" {
		w.ID = f.id("wf")
	}
	f.workflows[w.ID] = w
	f.workflowOrder = append(f.workflowOrder, w.ID)
	return nil
}

func (f *fakeRepo) UpdateWorkflowSteps(_ context.Context, id string, steps []models.WorkflowStep) error {
	w, ok := f.workflows[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.Steps = steps
	return nil
}

func (f *fakeRepo) UpdateWorkflowHealth(_ context.Context, id string, health models.GovernanceHealth) error {
	w, ok := f.workflows[id]
	if !ok {
		return repository.ErrNotFound
	}
	w.Health = &health
	return nil
}

func (f *fakeRepo) UpdateWorkflowHealthBatch(ctx context.Context, updates []repository.HealthUpdate) error {
	f.batchCalls++
	for _, u := range updates {
		if err := f.UpdateWorkflowHealth(ctx, u.WorkflowID, u.Health); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRepo) InsertEscalation(_ context.Context, e *models.GovernanceEscalation) error {
	e.ID = f.id("esc")
	e.Count = 1
	e.Status = models.EscalationPending
	e.CreatedAt = time.Now().UTC()
	f.escalations[e.ID] = e
	return nil
}

func (f *fakeRepo) GetEscalation(_ context.Context, id string) (*models.GovernanceEscalation, error) {
	if e, ok := f.escalations[id]; ok {
		return e, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) ListEscalations(_ context.Context, businessID string, status *models.EscalationStatus) ([]*models.EscalationSummary, error) {
	var out []*models.EscalationSummary
	for _, e := range f.escalations {
		if e.BusinessID != businessID {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		summary := &models.EscalationSummary{GovernanceEscalation: *e}
		if w, ok := f.workflows[e.WorkflowID]; ok {
			summary.WorkflowName = w.Name
		}
		out = append(out, summary)
	}
	return out, nil
}

func (f *fakeRepo) ResolveEscalation(_ context.Context, id, resolution string, resolvedAt time.Time) error {
	e, ok := f.escalations[id]
	if !ok || e.Status != models.EscalationPending {
		return repository.ErrNotFound
	}
	e.Status = models.EscalationResolved
	e.Resolution = resolution
	e.ResolvedAt = &resolvedAt
	return nil
}

func (f *fakeRepo) GetAutomationSettings(_ context.Context, businessID string) (*models.AutomationSettings, error) {
	if s, ok := f.settings[businessID]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) UpsertAutomationSettings(_ context.Context, s *models.AutomationSettings) error {
	if s.ID == "" {
		s.ID = f.id("set")
	}
	f.settings[s.BusinessID] = s
	return nil
}

func (f *fakeRepo) InsertAuditEntry(_ context.Context, entry *models.AuditEntry) error {
	f.auditEntries = append(f.auditEntries, entry)
	return nil
}

func (f *fakeRepo) InsertNotification(_ context.Context, n *models.Notification) error {
	n.ID = f.id("ntf")
	f.notifications = append(f.notifications, n)
	return nil
}

var _ repository.Repository = (*fakeRepo)(nil)

func newTestService(repo *fakeRepo) *GovernanceService {
	return NewGovernanceService(repo, audit.NewStoreRecorder(repo, nil), nil)
}

func actorCtx() context.Context {
	return auth.WithIdentity(context.Background(), "biz-1", "admin@acme.test")
}

func seedWorkflow(t *testing.T, repo *fakeRepo, w *models.Workflow) *models.Workflow {
	t.Helper()
	require.NoError(t, repo.CreateWorkflow(context.Background(), w))
	return w
}

func TestEvaluateWorkflowDoesNotPersist(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierSME})

	health, err := svc.EvaluateWorkflow(actorCtx(), w.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, health.Issues)
	assert.Nil(t, repo.workflows[w.ID].Health)
}

func TestEvaluateWorkflowNotFound(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.EvaluateWorkflow(actorCtx(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnforceWorkflowPersistsHealth(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	sla := 48.0
	w := seedWorkflow(t, repo, &models.Workflow{
		BusinessID: "biz-1",
		Tier:       models.TierEnterprise,
		Steps:      []models.WorkflowStep{{Type: models.StepTypeApproval, Role: "admin", SLAHours: &sla}},
	})

	result, err := svc.EnforceWorkflow(actorCtx(), w.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Score, 60)
	require.NotNil(t, repo.workflows[w.ID].Health)
	assert.Equal(t, result.Score, repo.workflows[w.ID].Health.Score)

	// Enforcement alone writes no audit entries.
	assert.Empty(t, repo.auditEntries)
}

func TestEnforceBusinessBatch(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w1 := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierSolopreneur, Description: "d"})
	w2 := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierEnterprise})
	seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-2", Tier: models.TierEnterprise})

	result, err := svc.EnforceBusiness(actorCtx(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, []WorkflowScore{{ID: w1.ID, Score: 100}, {ID: w2.ID, Score: 0}}, result.Updated)

	// All writes land through the one transactional batch call.
	assert.Equal(t, 1, repo.batchCalls)
	assert.NotNil(t, repo.workflows[w1.ID].Health)
	assert.NotNil(t, repo.workflows[w2.ID].Health)

	// The other business is untouched.
	for _, id := range repo.workflowOrder {
		if repo.workflows[id].BusinessID == "biz-2" {
			assert.Nil(t, repo.workflows[id].Health)
		}
	}
}

func TestValidateWorkflow(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	bad := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierSME})
	good := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierSolopreneur, Description: "d"})

	result, err := svc.ValidateWorkflow(actorCtx(), bad.ID)
	require.NoError(t, err)
	assert.False(t, result.OK)

	result, err = svc.ValidateWorkflow(actorCtx(), good.ID)
	require.NoError(t, err)
	assert.True(t, result.OK)
	// Validation never persists.
	assert.Nil(t, repo.workflows[bad.ID].Health)
}

func TestRemediateViolationPersistsAndAudits(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierSME, Description: "d"})

	result, err := svc.RemediateViolation(actorCtx(), w.ID, models.ViolationMissingApproval)
	require.NoError(t, err)
	assert.True(t, result.Remediated)
	assert.NotEmpty(t, result.Action)

	require.Len(t, repo.workflows[w.ID].Steps, 1)
	assert.Equal(t, "admin", repo.workflows[w.ID].Steps[0].Role)

	require.Len(t, repo.auditEntries, 1)
	assert.Equal(t, "admin@acme.test", repo.auditEntries[0].Actor)
	assert.Equal(t, "governance.remediate", repo.auditEntries[0].Action)

	// The violation no longer fires on re-evaluation.
	health, err := svc.EvaluateWorkflow(actorCtx(), w.ID)
	require.NoError(t, err)
	for _, issue := range health.Issues {
		assert.NotEqual(t, models.IssueMissingApproval, issue.Code)
	}
}

func TestRemediateNoOpWritesNothing(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	sla := 48.0
	w := seedWorkflow(t, repo, &models.Workflow{
		BusinessID: "biz-1",
		Tier:       models.TierEnterprise,
		Steps: []models.WorkflowStep{
			{Type: models.StepTypeApproval, Role: "admin", SLAHours: &sla},
			{Type: models.StepTypeApproval, Role: "senior_admin", SLAHours: &sla},
		},
	})

	result, err := svc.RemediateViolation(actorCtx(), w.ID, models.ViolationInsufficientApprovals)
	require.NoError(t, err)
	assert.False(t, result.Remediated)
	assert.Empty(t, repo.auditEntries)
}

func TestRemediationTierFallsBackToBusiness(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	require.NoError(t, repo.CreateBusiness(context.Background(), &models.Business{
		ID: "biz-1", Name: "Acme", Domain: "acme.test", Tier: models.TierEnterprise,
	}))
	// No tier anywhere on the workflow itself.
	w := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1"})

	_, err := svc.RemediateViolation(actorCtx(), w.ID, models.ViolationMissingApproval)
	require.NoError(t, err)
	// Business resolved to enterprise, so the appended step gets 48h.
	assert.Equal(t, 48.0, *repo.workflows[w.ID].Steps[0].SLAHours)
}

func TestEscalationLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Name: "invoice approval", Tier: models.TierSME})

	id, err := svc.Escalate(actorCtx(), EscalationRequest{
		BusinessID:    "biz-1",
		WorkflowID:    w.ID,
		ViolationType: models.ViolationMissingApproval,
		EscalatedTo:   "ops@acme.test",
		Notes:         "needs a human",
	})
	require.NoError(t, err)

	esc := repo.escalations[id]
	require.NotNil(t, esc)
	assert.Equal(t, models.EscalationPending, esc.Status)
	assert.Equal(t, 1, esc.Count)

	// Target user got a high-priority notification.
	require.Len(t, repo.notifications, 1)
	assert.Equal(t, "ops@acme.test", repo.notifications[0].UserID)
	assert.Equal(t, models.NotificationPriorityHigh, repo.notifications[0].Priority)

	list, err := svc.ListEscalations(actorCtx(), "biz-1", nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "invoice approval", list[0].WorkflowName)

	require.NoError(t, svc.ResolveEscalation(actorCtx(), id, "added approver manually"))
	assert.Equal(t, models.EscalationResolved, esc.Status)
	assert.NotNil(t, esc.ResolvedAt)

	// Resolved is terminal.
	err = svc.ResolveEscalation(actorCtx(), id, "again")
	assert.Error(t, err)
	assert.Equal(t, models.EscalationResolved, esc.Status)

	// Escalate and resolve both audited.
	assert.Len(t, repo.auditEntries, 2)
}

func TestEscalateRepeatedViolationCreatesNewRows(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w := seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierSME})

	req := EscalationRequest{
		BusinessID:    "biz-1",
		WorkflowID:    w.ID,
		ViolationType: models.ViolationMissingApproval,
		EscalatedTo:   "ops@acme.test",
	}
	first, err := svc.Escalate(actorCtx(), req)
	require.NoError(t, err)
	second, err := svc.Escalate(actorCtx(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, repo.escalations[first].Count)
	assert.Equal(t, 1, repo.escalations[second].Count)
}

func TestAutomationSettingsLazyDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	settings, err := svc.GetAutomationSettings(actorCtx(), "biz-1")
	require.NoError(t, err)
	for _, v := range models.AllViolationTypes {
		assert.False(t, settings.AutoRemediate[v])
	}
	assert.Empty(t, settings.Escalation.EscalateTo)

	// The defaults were persisted, not just returned.
	assert.Contains(t, repo.settings, "biz-1")
}

func TestUpdateAutomationSettingsReplacesWholesale(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.UpdateAutomationSettings(actorCtx(), "biz-1", SettingsUpdate{
		AutoRemediate: map[models.ViolationType]bool{models.ViolationMissingApproval: true},
		Escalation:    models.EscalationRules{Threshold: 70, EscalateTo: "ops@acme.test"},
	})
	require.NoError(t, err)

	// A second update with a different map fully replaces the first.
	updated, err := svc.UpdateAutomationSettings(actorCtx(), "biz-1", SettingsUpdate{
		AutoRemediate: map[models.ViolationType]bool{models.ViolationInsufficientSLA: true},
		Escalation:    models.EscalationRules{Threshold: 50, EscalateTo: "ops@acme.test"},
	})
	require.NoError(t, err)
	assert.False(t, updated.AutoRemediate[models.ViolationMissingApproval])
	assert.True(t, updated.AutoRemediate[models.ViolationInsufficientSLA])
	assert.Equal(t, 50, updated.Escalation.Threshold)
}

func TestScoreTrend(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	now := time.Now().UTC()

	seedWorkflow(t, repo, &models.Workflow{
		BusinessID: "biz-1", Region: "emea",
		Health: &models.GovernanceHealth{Score: 90, UpdatedAt: now},
	})
	seedWorkflow(t, repo, &models.Workflow{
		BusinessID: "biz-1", Region: "emea",
		Health: &models.GovernanceHealth{
			Score:     40,
			UpdatedAt: now,
			Issues: []models.Issue{
				{Code: models.IssueMissingApproval, Severity: models.SeverityError},
				{Code: models.IssueSLATooLow, Severity: models.SeverityWarn},
			},
		},
	})
	// Never enforced: counts as non-compliant at score zero.
	seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1"})

	trend, err := svc.ScoreTrend(actorCtx(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 3, trend.Total)
	assert.Equal(t, 1, trend.Compliant)
	assert.InDelta(t, 1.0/3.0, trend.ComplianceRate, 1e-9)
	assert.Equal(t, (90+40)/3, trend.AverageScore)

	assert.Equal(t, []RegionCompliance{
		{Region: "emea", Total: 2, Compliant: 1},
		{Region: "unassigned", Total: 1, Compliant: 0},
	}, trend.ByRegion)

	assert.Equal(t, 1, trend.ByViolation[models.ViolationMissingApproval])
	assert.Equal(t, 1, trend.ByViolation[models.ViolationInsufficientSLA])

	require.Len(t, trend.History, historyWeeks)
	assert.Equal(t, trend.AverageScore, trend.History[historyWeeks-1].Score)
	for _, p := range trend.History {
		assert.GreaterOrEqual(t, p.Score, 0)
		assert.LessOrEqual(t, p.Score, 100)
	}
}

func TestRunAutomationRemediatesAndEscalates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	w := seedWorkflow(t, repo, &models.Workflow{
		BusinessID: "biz-1",
		Name:       "quote approval",
		Tier:       models.TierSME,
		Steps:      []models.WorkflowStep{{Type: "task"}},
	})

	_, err := svc.UpdateAutomationSettings(actorCtx(), "biz-1", SettingsUpdate{
		AutoRemediate: map[models.ViolationType]bool{models.ViolationMissingApproval: true},
		Escalation:    models.EscalationRules{Threshold: 100, EscalateTo: "ops@acme.test"},
	})
	require.NoError(t, err)

	run, err := svc.RunAutomation(actorCtx(), "biz-1")
	require.NoError(t, err)
	require.Len(t, run.Workflows, 1)

	result := run.Workflows[0]
	assert.Equal(t, w.ID, result.WorkflowID)
	assert.Contains(t, result.Remediated, models.ViolationMissingApproval)
	assert.Greater(t, result.ScoreAfter, result.ScoreBefore)

	// The remediated approval carries an SLA, so only the description
	// warn remains; below the threshold the remaining remediable
	// violations were escalated. missing_approval itself was fixed, so
	// no escalation for it.
	for _, esc := range repo.escalations {
		assert.NotEqual(t, models.ViolationMissingApproval, esc.ViolationType)
	}

	// Final health was re-persisted after remediation.
	require.NotNil(t, repo.workflows[w.ID].Health)
	assert.Equal(t, result.ScoreAfter, repo.workflows[w.ID].Health.Score)
	for _, issue := range repo.workflows[w.ID].Health.Issues {
		assert.NotEqual(t, models.IssueMissingApproval, issue.Code)
	}
}

func TestRunAutomationNoEscalationWithoutTarget(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	seedWorkflow(t, repo, &models.Workflow{BusinessID: "biz-1", Tier: models.TierEnterprise})

	// Default settings: nothing remediated, no escalation target.
	run, err := svc.RunAutomation(actorCtx(), "biz-1")
	require.NoError(t, err)
	assert.Zero(t, run.Remediated)
	assert.Zero(t, run.Escalated)
	assert.Empty(t, repo.escalations)
}
