// Package governance implements the compliance rule engine: workflow
// normalization, health evaluation, and violation remediation. The
// evaluator is pure; persistence and audit live in the service layer.
package governance

import (
	"bizops-governance/backend/pkg/models"
)

// NormalizedWorkflow is the single typed shape every rule runs against.
// All duck-typed field resolution (steps vs pipeline, the tier fallback
// chain) happens once, here, so the evaluator never touches raw input.
type NormalizedWorkflow struct {
	Tier               models.Tier
	Steps              []models.WorkflowStep
	Description        string
	RequireHumanReview bool
}

// knownTier reports whether t is one of the four recognized tiers.
func knownTier(t models.Tier) bool {
	switch t {
	case models.TierSolopreneur, models.TierStartup, models.TierSME, models.TierEnterprise:
		return true
	}
	return false
}

// ResolveTier walks the tier fallback chain: the record's own tier,
// then metadata.tier, then the denormalized business tier. The second
// return is false when no field resolves to a recognized tier.
func ResolveTier(w *models.Workflow) (models.Tier, bool) {
	if knownTier(w.Tier) {
		return w.Tier, true
	}
	if raw, ok := w.Metadata["tier"].(string); ok && knownTier(models.Tier(raw)) {
		return models.Tier(raw), true
	}
	if knownTier(w.BusinessTier) {
		return w.BusinessTier, true
	}
	return "", false
}

// NormalizeSteps picks the workflow's step sequence: steps wins over
// pipeline, first non-empty; nil when neither is populated.
func NormalizeSteps(w *models.Workflow) []models.WorkflowStep {
	if len(w.Steps) > 0 {
		return w.Steps
	}
	if len(w.Pipeline) > 0 {
		return w.Pipeline
	}
	return nil
}

// Normalize maps a raw workflow record to the typed shape the rule set
// evaluates. Unresolvable tiers default to startup. Malformed or
// missing fields never produce an error; they normalize to zero values
// and the rules treat the result as maximally non-compliant.
func Normalize(w *models.Workflow) NormalizedWorkflow {
	tier, ok := ResolveTier(w)
	if !ok {
		tier = models.TierStartup
	}
	return NormalizedWorkflow{
		Tier:               tier,
		Steps:              NormalizeSteps(w),
		Description:        w.Description,
		RequireHumanReview: w.MMRRequired || w.RequireHumanReview,
	}
}
