package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bizops-governance/backend/pkg/models"
)

var evalNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func hours(h float64) *float64 { return &h }

func approval(role string, sla *float64) models.WorkflowStep {
	return models.WorkflowStep{Type: models.StepTypeApproval, Role: role, SLAHours: sla}
}

func issueCodes(h models.GovernanceHealth) []models.IssueCode {
	codes := make([]models.IssueCode, 0, len(h.Issues))
	for _, issue := range h.Issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func severityOf(t *testing.T, h models.GovernanceHealth, code models.IssueCode) models.Severity {
	t.Helper()
	for _, issue := range h.Issues {
		if issue.Code == code {
			return issue.Severity
		}
	}
	t.Fatalf("issue %q not found in %v", code, issueCodes(h))
	return ""
}

func TestNormalizeTierFallbackChain(t *testing.T) {
	nw := Normalize(&models.Workflow{Tier: models.TierEnterprise})
	assert.Equal(t, models.TierEnterprise, nw.Tier)

	nw = Normalize(&models.Workflow{Metadata: map[string]any{"tier": "sme"}})
	assert.Equal(t, models.TierSME, nw.Tier)

	nw = Normalize(&models.Workflow{BusinessTier: models.TierSolopreneur})
	assert.Equal(t, models.TierSolopreneur, nw.Tier)

	// Unknown tier strings fall through to the startup default.
	nw = Normalize(&models.Workflow{Tier: "platinum", Metadata: map[string]any{"tier": 7}})
	assert.Equal(t, models.TierStartup, nw.Tier)
}

func TestNormalizeStepsPrefersStepsOverPipeline(t *testing.T) {
	w := &models.Workflow{
		Steps:    []models.WorkflowStep{approval("admin", nil)},
		Pipeline: []models.WorkflowStep{{Type: models.StepTypeDelay}},
	}
	assert.Len(t, Normalize(w).Steps, 1)
	assert.Equal(t, models.StepTypeApproval, Normalize(w).Steps[0].Type)

	w.Steps = nil
	assert.Equal(t, models.StepTypeDelay, Normalize(w).Steps[0].Type)

	w.Pipeline = nil
	assert.Empty(t, Normalize(w).Steps)
}

func TestEvaluateEnterpriseSingleApproval(t *testing.T) {
	// The worked example: one admin approval at 48h, no description.
	w := &models.Workflow{
		Tier:  models.TierEnterprise,
		Steps: []models.WorkflowStep{approval("admin", hours(48))},
	}
	h := Evaluate(w, evalNow)

	assert.Contains(t, issueCodes(h), models.IssueMissingSecondApproval)
	assert.Equal(t, models.SeverityError, severityOf(t, h, models.IssueMissingSecondApproval))
	assert.NotContains(t, issueCodes(h), models.IssueApproverRoleDiversity)
	assert.LessOrEqual(t, h.Score, 60)

	// Appending a distinct second approver clears the error and wins
	// the 40 points back.
	w.Steps = append(w.Steps, approval("senior_admin", hours(48)))
	h2 := Evaluate(w, evalNow)
	assert.NotContains(t, issueCodes(h2), models.IssueMissingSecondApproval)
	assert.NotContains(t, issueCodes(h2), models.IssueApproverRoleDiversity)
	assert.Equal(t, h.Score+errorPenalty, h2.Score)
}

func TestEvaluateEnterpriseFewerThanTwoApprovalsScoresError(t *testing.T) {
	w := &models.Workflow{
		Tier:        models.TierEnterprise,
		Description: "quarterly close",
		Steps:       []models.WorkflowStep{approval("admin", hours(48))},
	}
	h := Evaluate(w, evalNow)
	assert.True(t, h.HasErrors())
	assert.LessOrEqual(t, h.Score, 60)
}

func TestEvaluateSolopreneurInfoCostsNothing(t *testing.T) {
	h := Evaluate(&models.Workflow{Tier: models.TierSolopreneur}, evalNow)
	// Both description nudges fire, both info, neither costs points.
	assert.Contains(t, issueCodes(h), models.IssueMissingDescription)
	assert.Contains(t, issueCodes(h), models.IssueMissingDescriptionGeneral)
	for _, issue := range h.Issues {
		assert.Equal(t, models.SeverityInfo, issue.Severity)
	}
	assert.Equal(t, 100, h.Score)
}

func TestEvaluateIdempotent(t *testing.T) {
	w := &models.Workflow{
		Tier:  models.TierSME,
		Steps: []models.WorkflowStep{approval("", nil)},
	}
	h1 := Evaluate(w, evalNow)
	h2 := Evaluate(w, evalNow)
	assert.Equal(t, h1.Score, h2.Score)
	assert.Equal(t, h1.Issues, h2.Issues)
}

func TestEvaluateMonotonicTierStrictness(t *testing.T) {
	// One roleless approval step, no SLA, no description: violates
	// every stricter-tier rule, so the score must be non-increasing as
	// the tier escalates.
	steps := []models.WorkflowStep{{Type: models.StepTypeApproval}}
	score := func(tier models.Tier) int {
		return Evaluate(&models.Workflow{Tier: tier, Steps: steps}, evalNow).Score
	}
	assert.LessOrEqual(t, score(models.TierEnterprise), score(models.TierSME))
	assert.LessOrEqual(t, score(models.TierSME), score(models.TierStartup))
	assert.LessOrEqual(t, score(models.TierStartup), score(models.TierSolopreneur))
}

func TestEvaluateSLAFloorBoundaries(t *testing.T) {
	at := func(tier models.Tier, sla float64) models.GovernanceHealth {
		return Evaluate(&models.Workflow{
			Tier:        tier,
			Description: "d",
			Steps:       []models.WorkflowStep{approval("admin", hours(sla)), approval("ops", hours(sla))},
		}, evalNow)
	}

	assert.NotContains(t, issueCodes(at(models.TierSME, 24)), models.IssueSLATooLow)
	assert.Contains(t, issueCodes(at(models.TierSME, 23)), models.IssueSLATooLow)
	assert.Equal(t, models.SeverityWarn, severityOf(t, at(models.TierSME, 23), models.IssueSLATooLow))

	assert.NotContains(t, issueCodes(at(models.TierEnterprise, 48)), models.IssueSLATooLow)
	assert.Contains(t, issueCodes(at(models.TierEnterprise, 47)), models.IssueSLATooLow)
	assert.Equal(t, models.SeverityError, severityOf(t, at(models.TierEnterprise, 47), models.IssueSLATooLow))
}

func TestEvaluateSLAFloorSkippedWithoutAnySLA(t *testing.T) {
	// No SLA at all is reported as missing_sla, not additionally as
	// sla_too_low.
	h := Evaluate(&models.Workflow{
		Tier:        models.TierSME,
		Description: "d",
		Steps:       []models.WorkflowStep{approval("admin", nil)},
	}, evalNow)
	assert.Contains(t, issueCodes(h), models.IssueMissingSLA)
	assert.NotContains(t, issueCodes(h), models.IssueSLATooLow)
}

func TestEvaluateDelayStepWithoutHoursImpliesOneHourSLA(t *testing.T) {
	h := Evaluate(&models.Workflow{
		Tier:        models.TierSME,
		Description: "d",
		Steps: []models.WorkflowStep{
			approval("admin", nil),
			{Type: models.StepTypeDelay},
		},
	}, evalNow)
	// The delay step counts as a declared SLA of one hour: missing_sla
	// is satisfied but the floor check now fails.
	assert.NotContains(t, issueCodes(h), models.IssueMissingSLA)
	assert.Contains(t, issueCodes(h), models.IssueSLATooLow)
}

func TestEvaluateHumanReviewRequiresApproval(t *testing.T) {
	base := models.Workflow{
		Description: "d",
		MMRRequired: true,
		Steps:       []models.WorkflowStep{{Type: models.StepTypeDelay, DelayHours: hours(48)}},
	}

	ent := base
	ent.Tier = models.TierEnterprise
	h := Evaluate(&ent, evalNow)
	assert.Equal(t, models.SeverityError, severityOf(t, h, models.IssueMMRRequiresApproval))

	sme := base
	sme.Tier = models.TierSME
	h = Evaluate(&sme, evalNow)
	assert.Equal(t, models.SeverityWarn, severityOf(t, h, models.IssueMMRRequiresApproval))

	// Not enforced below SME.
	sp := base
	sp.Tier = models.TierStartup
	assert.NotContains(t, issueCodes(Evaluate(&sp, evalNow)), models.IssueMMRRequiresApproval)

	// Satisfied once an approval step exists.
	ent.Steps = append(ent.Steps, approval("admin", hours(48)))
	assert.NotContains(t, issueCodes(Evaluate(&ent, evalNow)), models.IssueMMRRequiresApproval)
}

func TestEvaluateApproverRoleDiversity(t *testing.T) {
	w := &models.Workflow{
		Tier:        models.TierEnterprise,
		Description: "d",
		Steps:       []models.WorkflowStep{approval("admin", hours(48)), approval("admin", hours(48))},
	}
	h := Evaluate(w, evalNow)
	assert.Contains(t, issueCodes(h), models.IssueApproverRoleDiversity)
	// With two approvals present the second-approval rule is satisfied:
	// the two error rules cannot stack on the same workflow.
	assert.NotContains(t, issueCodes(h), models.IssueMissingSecondApproval)

	w.Steps[1].Role = "senior_admin"
	assert.NotContains(t, issueCodes(Evaluate(w, evalNow)), models.IssueApproverRoleDiversity)

	// Roleless approvers are not flagged; the missing_roles rule owns
	// that case.
	w.Steps[0].Role = ""
	w.Steps[1].Role = ""
	assert.NotContains(t, issueCodes(Evaluate(w, evalNow)), models.IssueApproverRoleDiversity)
}

func TestEvaluateDescriptionSeverityByTier(t *testing.T) {
	for tier, want := range map[models.Tier]models.Severity{
		models.TierSolopreneur: models.SeverityInfo,
		models.TierStartup:     models.SeverityInfo,
		models.TierSME:         models.SeverityWarn,
		models.TierEnterprise:  models.SeverityWarn,
	} {
		h := Evaluate(&models.Workflow{Tier: tier}, evalNow)
		assert.Equal(t, want, severityOf(t, h, models.IssueMissingDescriptionGeneral), "tier %s", tier)
	}
}

func TestEvaluateScoreClampedAtZero(t *testing.T) {
	// Enterprise with nothing right at all stacks enough errors and
	// warns to go below zero before clamping.
	h := Evaluate(&models.Workflow{Tier: models.TierEnterprise}, evalNow)
	assert.Equal(t, 0, h.Score)
}

func TestRemediableViolationMapping(t *testing.T) {
	cases := map[models.IssueCode]models.ViolationType{
		models.IssueMissingApproval:       models.ViolationMissingApproval,
		models.IssueMissingSecondApproval: models.ViolationInsufficientApprovals,
		models.IssueMissingSLA:            models.ViolationInsufficientSLA,
		models.IssueSLATooLow:             models.ViolationInsufficientSLA,
		models.IssueApproverRoleDiversity: models.ViolationRoleDiversity,
	}
	for code, want := range cases {
		got, ok := RemediableViolation(code)
		assert.True(t, ok, "code %s", code)
		assert.Equal(t, want, got)
	}
	_, ok := RemediableViolation(models.IssueMissingDescription)
	assert.False(t, ok)
}
