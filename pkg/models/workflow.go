package models

import (
	"time"
)

// WorkflowStep is one stage of a workflow's ordered step sequence.
// Producers are inconsistent about which role and duration field they
// populate, so all variants are carried and resolved at normalization
// time rather than here.
type WorkflowStep struct {
	Type         string   `json:"type"`
	Role         string   `json:"role,omitempty"`
	AssigneeRole string   `json:"assignee_role,omitempty"`
	OwnerRole    string   `json:"owner_role,omitempty"`
	SLAHours     *float64 `json:"sla_hours,omitempty"`
	DelayHours   *float64 `json:"delay_hours,omitempty"`
}

// Step type tags recognized by the rule engine. Any other tag is
// treated as an ordinary step.
const (
	StepTypeApproval = "approval"
	StepTypeDelay    = "delay"
)

// EffectiveRole returns the first declared role field, or "" when the
// step declares none.
func (s WorkflowStep) EffectiveRole() string {
	if s.Role != "" {
		return s.Role
	}
	if s.AssigneeRole != "" {
		return s.AssigneeRole
	}
	return s.OwnerRole
}

// Workflow represents a business-operations workflow definition. The
// tier, step, and review fields mirror the heterogeneous shapes the
// surrounding CRUD layer writes; the governance package normalizes them
// before any rule runs.
type Workflow struct {
	ID          string `json:"id"`
	BusinessID  string `json:"business_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Region      string `json:"region,omitempty"`

	// Tier may live on the record itself, in free-form metadata, or as
	// a denormalized copy of the owning business's tier.
	Tier         Tier           `json:"tier,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	BusinessTier Tier           `json:"business_tier,omitempty"`

	// Steps and Pipeline are alternate homes for the same sequence;
	// the first non-empty one wins at evaluation time.
	Steps    []WorkflowStep `json:"steps,omitempty"`
	Pipeline []WorkflowStep `json:"pipeline,omitempty"`

	MMRRequired        bool `json:"mmr_required,omitempty"`
	RequireHumanReview bool `json:"require_human_review,omitempty"`

	Health *GovernanceHealth `json:"governance_health,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
