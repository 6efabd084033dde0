// Package models defines the domain models for the governance service
package models

import (
	"time"
)

// Tier represents the subscription/maturity level of a business. The
// compliance rule set grows strictly stricter as the tier escalates from
// solopreneur to enterprise.
type Tier string

const (
	TierSolopreneur Tier = "solopreneur"
	TierStartup     Tier = "startup"
	TierSME         Tier = "sme"
	TierEnterprise  Tier = "enterprise"
)

// Severity classifies how much a governance issue costs the health score.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// IssueCode is the stable identifier of a governance rule violation.
// Codes are persisted alongside the rendered message so downstream
// aggregation never has to match on message text.
type IssueCode string

const (
	IssueMissingApproval           IssueCode = "missing_approval"
	IssueMissingSecondApproval     IssueCode = "missing_second_approval"
	IssueMissingSLA                IssueCode = "missing_sla"
	IssueMissingRoles              IssueCode = "missing_roles"
	IssueMissingDescription        IssueCode = "missing_description"
	IssueMissingDescriptionGeneral IssueCode = "missing_description_general"
	IssueSLATooLow                 IssueCode = "sla_too_low"
	IssueMMRRequiresApproval       IssueCode = "mmr_requires_approval"
	IssueApproverRoleDiversity     IssueCode = "approver_role_diversity_required"
)

// Issue is a single governance finding produced by the evaluator.
type Issue struct {
	Code     IssueCode `json:"code"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

// GovernanceHealth is the computed compliance result attached to a
// workflow. It is recomputed wholesale on every evaluation and
// overwritten in place, never incrementally updated.
type GovernanceHealth struct {
	Score     int       `json:"score"`
	Issues    []Issue   `json:"issues"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasErrors reports whether any issue carries error severity.
func (h GovernanceHealth) HasErrors() bool {
	for _, issue := range h.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ViolationType names a remediable class of governance violation. It is
// the vocabulary shared by auto-remediation, escalation, and the
// per-business automation settings.
type ViolationType string

const (
	ViolationMissingApproval       ViolationType = "missing_approval"
	ViolationInsufficientSLA       ViolationType = "insufficient_sla"
	ViolationInsufficientApprovals ViolationType = "insufficient_approvals"
	ViolationRoleDiversity         ViolationType = "role_diversity"
)

// AllViolationTypes lists every remediable violation class, in the
// order the automation sweep considers them.
var AllViolationTypes = []ViolationType{
	ViolationMissingApproval,
	ViolationInsufficientSLA,
	ViolationInsufficientApprovals,
	ViolationRoleDiversity,
}

// EscalationStatus is the lifecycle state of a governance escalation.
// The only transition is pending -> resolved; resolved is terminal.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationResolved EscalationStatus = "resolved"
)

// GovernanceEscalation routes an unresolved violation to a human.
// Each escalation call creates a new row; Count is initialized to 1 and
// never incremented by repeated escalations of the same violation.
type GovernanceEscalation struct {
	ID            string           `json:"id"`
	BusinessID    string           `json:"business_id"`
	WorkflowID    string           `json:"workflow_id"`
	ViolationType ViolationType    `json:"violation_type"`
	Count         int              `json:"count"`
	EscalatedTo   string           `json:"escalated_to"`
	Status        EscalationStatus `json:"status"`
	Notes         string           `json:"notes,omitempty"`
	Resolution    string           `json:"resolution,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`
}

// EscalationSummary is an escalation enriched with the display name of
// the workflow it refers to, for list views.
type EscalationSummary struct {
	GovernanceEscalation
	WorkflowName string `json:"workflow_name"`
}

// EscalationRules configures when and to whom violations that are not
// auto-remediated get escalated.
type EscalationRules struct {
	Threshold  int    `json:"threshold"`
	EscalateTo string `json:"escalate_to"`
}

// AutomationSettings is the per-business governance automation
// configuration. Created lazily on first read with all remediation
// toggles off; updates replace the whole object, there is no merge.
type AutomationSettings struct {
	ID            string                 `json:"id"`
	BusinessID    string                 `json:"business_id"`
	AutoRemediate map[ViolationType]bool `json:"auto_remediate"`
	Escalation    EscalationRules        `json:"escalation_rules"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// DefaultAutomationSettings returns the safe defaults used on lazy
// creation: nothing is auto-remediated, nothing is escalated.
func DefaultAutomationSettings(businessID string) *AutomationSettings {
	remediate := make(map[ViolationType]bool, len(AllViolationTypes))
	for _, v := range AllViolationTypes {
		remediate[v] = false
	}
	return &AutomationSettings{
		BusinessID:    businessID,
		AutoRemediate: remediate,
	}
}

// AuditEntry records a governance mutation for the audit trail.
type AuditEntry struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationPriority ranks a notification for the inbox view.
type NotificationPriority string

const (
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// Notification is a message addressed to a single user, e.g. the
// target of an escalation.
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Title     string               `json:"title"`
	Body      string               `json:"body"`
	Priority  NotificationPriority `json:"priority"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"created_at"`
}
