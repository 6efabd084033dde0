package services

import (
	"context"
	"errors"

	"bizops-governance/backend/internal/repository"
	"bizops-governance/backend/pkg/models"
)

// SettingsUpdate is a full replacement of a business's automation
// settings. There are no merge semantics: callers always supply the
// complete remediation map and escalation rules.
type SettingsUpdate struct {
	AutoRemediate map[models.ViolationType]bool `json:"auto_remediate"`
	Escalation    models.EscalationRules        `json:"escalation_rules"`
}

// GetAutomationSettings returns a business's settings, creating them
// with safe defaults (nothing auto-remediated) on first read.
func (s *GovernanceService) GetAutomationSettings(ctx context.Context, businessID string) (*models.AutomationSettings, error) {
	settings, err := s.repo.GetAutomationSettings(ctx, businessID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	settings = models.DefaultAutomationSettings(businessID)
	if err := s.repo.UpsertAutomationSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateAutomationSettings replaces the settings wholesale.
func (s *GovernanceService) UpdateAutomationSettings(ctx context.Context, businessID string, update SettingsUpdate) (*models.AutomationSettings, error) {
	remediate := update.AutoRemediate
	if remediate == nil {
		remediate = models.DefaultAutomationSettings(businessID).AutoRemediate
	}
	existing, err := s.repo.GetAutomationSettings(ctx, businessID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	settings := &models.AutomationSettings{
		BusinessID:    businessID,
		AutoRemediate: remediate,
		Escalation:    update.Escalation,
	}
	if existing != nil {
		settings.ID = existing.ID
		settings.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.UpsertAutomationSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
