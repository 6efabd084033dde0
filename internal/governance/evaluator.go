package governance

import (
	"fmt"
	"time"

	"bizops-governance/backend/pkg/models"
)

// Score deductions per issue severity. Info findings are free.
const (
	errorPenalty = 40
	warnPenalty  = 15
)

// SLA floors in hours, by tier.
const (
	slaFloorSME        = 24
	slaFloorEnterprise = 48
)

// stepStats are the aggregates the rule set derives from a step
// sequence in a single pass.
type stepStats struct {
	approvals    int
	delays       int
	anyRole      bool
	anySLA       bool
	effectiveSLA float64
}

func collectStats(steps []models.WorkflowStep) stepStats {
	var st stepStats
	for _, s := range steps {
		switch s.Type {
		case models.StepTypeApproval:
			st.approvals++
		case models.StepTypeDelay:
			st.delays++
		}
		if s.EffectiveRole() != "" {
			st.anyRole = true
		}
		if s.SLAHours != nil {
			st.anySLA = true
			if *s.SLAHours > st.effectiveSLA {
				st.effectiveSLA = *s.SLAHours
			}
		}
		if s.DelayHours != nil {
			st.anySLA = true
			if *s.DelayHours > st.effectiveSLA {
				st.effectiveSLA = *s.DelayHours
			}
		}
	}
	// Delay steps with no declared hours still imply some wait: they
	// satisfy SLA presence but count as one hour, so the floor check
	// has something to reject.
	if st.delays > 0 {
		st.anySLA = true
		if st.effectiveSLA == 0 {
			st.effectiveSLA = 1
		}
	}
	return st
}

// Evaluate runs the full tier rule set against a workflow record and
// returns its governance health. It never fails: malformed input
// scores as maximally non-compliant rather than erroring. Holding now
// constant, the result is deterministic for identical input.
func Evaluate(w *models.Workflow, now time.Time) models.GovernanceHealth {
	return EvaluateNormalized(Normalize(w), now)
}

// EvaluateNormalized applies the tier rules to an already-normalized
// workflow. Rules only ever append issues; the score is derived at the
// end from the issue severities.
func EvaluateNormalized(nw NormalizedWorkflow, now time.Time) models.GovernanceHealth {
	st := collectStats(nw.Steps)
	var issues []models.Issue
	add := func(code models.IssueCode, sev models.Severity, msg string) {
		issues = append(issues, models.Issue{Code: code, Message: msg, Severity: sev})
	}

	tier := nw.Tier
	strict := tier == models.TierSME || tier == models.TierEnterprise

	if strict && st.approvals < 1 {
		add(models.IssueMissingApproval, models.SeverityError,
			"workflow requires at least one approval step")
	}
	switch tier {
	case models.TierEnterprise:
		if st.approvals < 2 {
			add(models.IssueMissingSecondApproval, models.SeverityError,
				"enterprise workflows require a second approval step")
		}
		if !st.anySLA {
			add(models.IssueMissingSLA, models.SeverityWarn,
				"no SLA or delay declared on any step")
		}
		if !st.anyRole {
			add(models.IssueMissingRoles, models.SeverityWarn,
				"no step declares a responsible role")
		}
	case models.TierSME:
		if !st.anySLA {
			add(models.IssueMissingSLA, models.SeverityWarn,
				"no SLA or delay declared on any step")
		}
	case models.TierStartup:
		if !st.anyRole {
			add(models.IssueMissingRoles, models.SeverityInfo,
				"consider assigning a role to at least one step")
		}
	case models.TierSolopreneur:
		if nw.Description == "" {
			add(models.IssueMissingDescription, models.SeverityInfo,
				"consider describing what this workflow does")
		}
	}

	// SLA floor applies only when there is a declared or implied SLA to
	// measure; the absence of any SLA is already covered by missing_sla.
	if st.effectiveSLA > 0 {
		switch {
		case tier == models.TierSME && st.effectiveSLA < slaFloorSME:
			add(models.IssueSLATooLow, models.SeverityWarn,
				fmt.Sprintf("effective SLA %.0fh is below the %dh floor for SME workflows", st.effectiveSLA, slaFloorSME))
		case tier == models.TierEnterprise && st.effectiveSLA < slaFloorEnterprise:
			add(models.IssueSLATooLow, models.SeverityError,
				fmt.Sprintf("effective SLA %.0fh is below the %dh floor for enterprise workflows", st.effectiveSLA, slaFloorEnterprise))
		}
	}

	if nw.RequireHumanReview && strict && st.approvals == 0 {
		sev := models.SeverityWarn
		if tier == models.TierEnterprise {
			sev = models.SeverityError
		}
		add(models.IssueMMRRequiresApproval, sev,
			"human review is required but no approval step exists")
	}

	// Enterprise approver diversity: the first two approval steps must
	// not share a role. Only meaningful once two approvals exist, so it
	// never fires together with missing_second_approval.
	if tier == models.TierEnterprise && st.approvals >= 2 {
		first, second := firstTwoApprovalRoles(nw.Steps)
		if first != "" && first == second {
			add(models.IssueApproverRoleDiversity, models.SeverityError,
				"the first two approval steps must be held by different roles")
		}
	}

	if nw.Description == "" {
		sev := models.SeverityInfo
		if strict {
			sev = models.SeverityWarn
		}
		add(models.IssueMissingDescriptionGeneral, sev,
			"workflow has no description")
	}

	return models.GovernanceHealth{
		Score:     scoreFor(issues),
		Issues:    issues,
		UpdatedAt: now,
	}
}

func firstTwoApprovalRoles(steps []models.WorkflowStep) (string, string) {
	var roles []string
	for _, s := range steps {
		if s.Type != models.StepTypeApproval {
			continue
		}
		roles = append(roles, s.EffectiveRole())
		if len(roles) == 2 {
			break
		}
	}
	if len(roles) < 2 {
		return "", ""
	}
	return roles[0], roles[1]
}

func scoreFor(issues []models.Issue) int {
	score := 100
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityError:
			score -= errorPenalty
		case models.SeverityWarn:
			score -= warnPenalty
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// RemediableViolation maps an issue code to the violation class the
// auto-remediation engine can act on. Codes with no remediation path
// return false.
func RemediableViolation(code models.IssueCode) (models.ViolationType, bool) {
	switch code {
	case models.IssueMissingApproval:
		return models.ViolationMissingApproval, true
	case models.IssueMissingSecondApproval:
		return models.ViolationInsufficientApprovals, true
	case models.IssueMissingSLA, models.IssueSLATooLow:
		return models.ViolationInsufficientSLA, true
	case models.IssueApproverRoleDiversity:
		return models.ViolationRoleDiversity, true
	}
	return "", false
}
