package services

import (
	"context"

	"bizops-governance/backend/internal/governance"
	"bizops-governance/backend/pkg/models"
)

// WorkflowAutomationResult is the automation outcome for one workflow.
type WorkflowAutomationResult struct {
	WorkflowID  string                 `json:"workflow_id"`
	ScoreBefore int                    `json:"score_before"`
	ScoreAfter  int                    `json:"score_after"`
	Remediated  []models.ViolationType `json:"remediated,omitempty"`
	Escalated   []models.ViolationType `json:"escalated,omitempty"`
}

// AutomationRunResult summarizes a governance automation sweep.
type AutomationRunResult struct {
	BusinessID string                     `json:"business_id"`
	Workflows  []WorkflowAutomationResult `json:"workflows"`
	Remediated int                        `json:"remediated"`
	Escalated  int                        `json:"escalated"`
}

// RunAutomation is the evaluate → remediate → re-evaluate → escalate
// loop. For every workflow of the business: enforce its health; each
// violation class whose auto-remediation toggle is on gets remediated
// and the workflow re-enforced; remaining violation classes are
// escalated to the configured target when the score sits below the
// escalation threshold. With no threshold or target configured,
// nothing escalates.
func (s *GovernanceService) RunAutomation(ctx context.Context, businessID string) (*AutomationRunResult, error) {
	settings, err := s.GetAutomationSettings(ctx, businessID)
	if err != nil {
		return nil, err
	}
	workflows, err := s.repo.ListWorkflowsByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}

	run := &AutomationRunResult{BusinessID: businessID}
	for _, w := range workflows {
		result, err := s.automateWorkflow(ctx, w.ID, settings)
		if err != nil {
			return nil, err
		}
		run.Workflows = append(run.Workflows, *result)
		run.Remediated += len(result.Remediated)
		run.Escalated += len(result.Escalated)
	}
	if s.logger != nil {
		s.logger.Info("automation sweep finished", "business", businessID,
			"workflows", len(run.Workflows), "remediated", run.Remediated, "escalated", run.Escalated)
	}
	return run, nil
}

func (s *GovernanceService) automateWorkflow(ctx context.Context, workflowID string, settings *models.AutomationSettings) (*WorkflowAutomationResult, error) {
	enforced, err := s.EnforceWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	result := &WorkflowAutomationResult{
		WorkflowID:  workflowID,
		ScoreBefore: enforced.Score,
		ScoreAfter:  enforced.Score,
	}

	violations := violationClasses(enforced.Issues)
	remediatedAny := false
	var unhandled []models.ViolationType
	for _, violation := range violations {
		if !settings.AutoRemediate[violation] {
			unhandled = append(unhandled, violation)
			continue
		}
		remediation, err := s.RemediateViolation(ctx, workflowID, violation)
		if err != nil {
			return nil, err
		}
		if remediation.Remediated {
			result.Remediated = append(result.Remediated, violation)
			remediatedAny = true
		} else {
			unhandled = append(unhandled, violation)
		}
	}

	if remediatedAny {
		enforced, err = s.EnforceWorkflow(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		result.ScoreAfter = enforced.Score
	}

	if settings.Escalation.EscalateTo == "" || result.ScoreAfter >= settings.Escalation.Threshold {
		return result, nil
	}
	for _, violation := range unhandled {
		_, err := s.Escalate(ctx, EscalationRequest{
			BusinessID:    settings.BusinessID,
			WorkflowID:    workflowID,
			ViolationType: violation,
			EscalatedTo:   settings.Escalation.EscalateTo,
			Notes:         "escalated by automation sweep",
		})
		if err != nil {
			return nil, err
		}
		result.Escalated = append(result.Escalated, violation)
	}
	return result, nil
}

// violationClasses maps a health result's issues to the distinct
// remediable violation classes, preserving first-seen order.
func violationClasses(issues []models.Issue) []models.ViolationType {
	seen := make(map[models.ViolationType]bool)
	var out []models.ViolationType
	for _, issue := range issues {
		violation, ok := governance.RemediableViolation(issue.Code)
		if !ok || seen[violation] {
			continue
		}
		seen[violation] = true
		out = append(out, violation)
	}
	return out
}
