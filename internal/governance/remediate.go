package governance

import (
	"fmt"

	"bizops-governance/backend/pkg/models"
)

// Roles assigned by remediation. Not a real diversity search: the
// first approver is forced to admin and the second to senior_admin.
const (
	remediationRole       = "admin"
	remediationSecondRole = "senior_admin"
)

// minSLAHours is the SLA remediation raises approval steps to.
func minSLAHours(tier models.Tier) float64 {
	if tier == models.TierEnterprise {
		return slaFloorEnterprise
	}
	return slaFloorSME
}

// Remediate applies the fix for one violation class to a step
// sequence. It returns the (possibly rewritten) steps, whether any
// mutation occurred, and a human-readable description of the action.
// Remediation never re-evaluates health; callers re-trigger evaluation
// themselves.
func Remediate(steps []models.WorkflowStep, tier models.Tier, violation models.ViolationType) ([]models.WorkflowStep, bool, string) {
	switch violation {
	case models.ViolationMissingApproval:
		return addApprovalStep(steps, tier)
	case models.ViolationInsufficientSLA:
		return raiseSLAs(steps, tier)
	case models.ViolationInsufficientApprovals:
		return addSecondApproval(steps, tier)
	case models.ViolationRoleDiversity:
		return diversifyApproverRoles(steps)
	}
	return steps, false, fmt.Sprintf("no remediation available for %q", violation)
}

func addApprovalStep(steps []models.WorkflowStep, tier models.Tier) ([]models.WorkflowStep, bool, string) {
	sla := minSLAHours(tier)
	steps = append(steps, models.WorkflowStep{
		Type:     models.StepTypeApproval,
		Role:     remediationRole,
		SLAHours: &sla,
	})
	return steps, true, fmt.Sprintf("added %s approval step with %.0fh SLA", remediationRole, sla)
}

func raiseSLAs(steps []models.WorkflowStep, tier models.Tier) ([]models.WorkflowStep, bool, string) {
	minSLA := minSLAHours(tier)
	changed := 0
	out := make([]models.WorkflowStep, len(steps))
	copy(out, steps)
	for i := range out {
		if out[i].Type != models.StepTypeApproval {
			continue
		}
		if out[i].SLAHours == nil || *out[i].SLAHours < minSLA {
			sla := minSLA
			out[i].SLAHours = &sla
			changed++
		}
	}
	if changed == 0 {
		return steps, false, "all approval SLAs already meet the tier minimum"
	}
	return out, true, fmt.Sprintf("raised SLA to %.0fh on %d approval step(s)", minSLA, changed)
}

func addSecondApproval(steps []models.WorkflowStep, tier models.Tier) ([]models.WorkflowStep, bool, string) {
	if tier != models.TierEnterprise {
		return steps, false, "second approval is only enforced for enterprise workflows"
	}
	if countApprovals(steps) >= 2 {
		return steps, false, "workflow already has two approval steps"
	}
	sla := float64(slaFloorEnterprise)
	steps = append(steps, models.WorkflowStep{
		Type:     models.StepTypeApproval,
		Role:     remediationSecondRole,
		SLAHours: &sla,
	})
	return steps, true, fmt.Sprintf("added %s approval step with %.0fh SLA", remediationSecondRole, sla)
}

func diversifyApproverRoles(steps []models.WorkflowStep) ([]models.WorkflowStep, bool, string) {
	if countApprovals(steps) < 2 {
		return steps, false, "fewer than two approval steps, nothing to diversify"
	}
	out := make([]models.WorkflowStep, len(steps))
	copy(out, steps)
	changed := false
	seen := 0
	for i := range out {
		if out[i].Type != models.StepTypeApproval {
			continue
		}
		seen++
		want := remediationRole
		if seen == 2 {
			want = remediationSecondRole
		}
		if out[i].EffectiveRole() != want {
			out[i].Role = want
			out[i].AssigneeRole = ""
			out[i].OwnerRole = ""
			changed = true
		}
		if seen == 2 {
			break
		}
	}
	if !changed {
		return steps, false, "approver roles already distinct"
	}
	return out, true, fmt.Sprintf("assigned %s and %s to the first two approval steps", remediationRole, remediationSecondRole)
}

func countApprovals(steps []models.WorkflowStep) int {
	n := 0
	for _, s := range steps {
		if s.Type == models.StepTypeApproval {
			n++
		}
	}
	return n
}
