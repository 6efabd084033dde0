package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"bizops-governance/backend/internal/auth"
	"bizops-governance/backend/internal/services"
	"bizops-governance/backend/pkg/models"
)

// RegisterRoutes mounts the governance API on a (typically
// authenticated) route group.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/workflows/:id/health", s.EvaluateWorkflow)
	g.POST("/workflows/:id/health/enforce", s.EnforceWorkflow)
	g.GET("/workflows/:id/validate", s.ValidateWorkflow)
	g.POST("/workflows/:id/remediate", s.RemediateWorkflow)

	g.POST("/businesses/:id/health/enforce", s.EnforceBusiness)
	g.GET("/businesses/:id/governance-trend", s.ScoreTrend)
	g.POST("/businesses/:id/automation/run", s.RunAutomation)
	g.GET("/businesses/:id/automation-settings", s.GetAutomationSettings)
	g.PUT("/businesses/:id/automation-settings", s.UpdateAutomationSettings)

	g.POST("/escalations", s.CreateEscalation)
	g.GET("/businesses/:id/escalations", s.ListEscalations)
	g.POST("/escalations/:id/resolve", s.ResolveEscalation)
}

// EvaluateWorkflow runs the evaluator without persisting.
// (GET /api/v1/workflows/:id/health)
func (s *Server) EvaluateWorkflow(c echo.Context) error {
	health, err := s.Service.EvaluateWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, health)
}

// EnforceWorkflow evaluates and persists one workflow's health.
// (POST /api/v1/workflows/:id/health/enforce)
func (s *Server) EnforceWorkflow(c echo.Context) error {
	result, err := s.Service.EnforceWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ValidateWorkflow is the pre-submit gate: evaluates without
// persisting and reports whether the workflow is free of errors.
// (GET /api/v1/workflows/:id/validate)
func (s *Server) ValidateWorkflow(c echo.Context) error {
	result, err := s.Service.ValidateWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type remediateRequest struct {
	ViolationType models.ViolationType `json:"violation_type"`
}

// RemediateWorkflow applies the auto-fix for one violation class.
// (POST /api/v1/workflows/:id/remediate)
func (s *Server) RemediateWorkflow(c echo.Context) error {
	var req remediateRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if req.ViolationType == "" {
		return problem(c, http.StatusBadRequest, "Bad Request", "violation_type is required")
	}
	result, err := s.Service.RemediateViolation(c.Request().Context(), c.Param("id"), req.ViolationType)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// EnforceBusiness evaluates and persists health for every workflow
// under a business.
// (POST /api/v1/businesses/:id/health/enforce)
func (s *Server) EnforceBusiness(c echo.Context) error {
	result, err := s.Service.EnforceBusiness(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ScoreTrend returns the compliance aggregation for a business.
// (GET /api/v1/businesses/:id/governance-trend)
func (s *Server) ScoreTrend(c echo.Context) error {
	trend, err := s.Service.ScoreTrend(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, trend)
}

// RunAutomation triggers the evaluate/remediate/escalate sweep for a
// business.
// (POST /api/v1/businesses/:id/automation/run)
func (s *Server) RunAutomation(c echo.Context) error {
	result, err := s.Service.RunAutomation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetAutomationSettings returns (lazily creating) a business's
// automation settings.
// (GET /api/v1/businesses/:id/automation-settings)
func (s *Server) GetAutomationSettings(c echo.Context) error {
	settings, err := s.Service.GetAutomationSettings(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateAutomationSettings replaces a business's settings wholesale.
// (PUT /api/v1/businesses/:id/automation-settings)
func (s *Server) UpdateAutomationSettings(c echo.Context) error {
	var update services.SettingsUpdate
	if err := c.Bind(&update); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	settings, err := s.Service.UpdateAutomationSettings(c.Request().Context(), c.Param("id"), update)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, settings)
}

// CreateEscalation routes a violation to a human.
// (POST /api/v1/escalations)
func (s *Server) CreateEscalation(c echo.Context) error {
	var req services.EscalationRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if req.WorkflowID == "" || req.ViolationType == "" || req.EscalatedTo == "" {
		return problem(c, http.StatusBadRequest, "Bad Request",
			"workflow_id, violation_type and escalated_to are required")
	}
	if req.BusinessID == "" {
		req.BusinessID = auth.BusinessIDFromContext(c.Request().Context())
	}
	id, err := s.Service.Escalate(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// ListEscalations returns a business's escalations, optionally
// filtered by ?status=pending|resolved.
// (GET /api/v1/businesses/:id/escalations)
func (s *Server) ListEscalations(c echo.Context) error {
	var status *models.EscalationStatus
	if raw := c.QueryParam("status"); raw != "" {
		st := models.EscalationStatus(raw)
		if st != models.EscalationPending && st != models.EscalationResolved {
			return problem(c, http.StatusBadRequest, "Bad Request", "unknown escalation status: "+raw)
		}
		status = &st
	}
	list, err := s.Service.ListEscalations(c.Request().Context(), c.Param("id"), status)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

// ResolveEscalation transitions an escalation to resolved.
// (POST /api/v1/escalations/:id/resolve)
func (s *Server) ResolveEscalation(c echo.Context) error {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if err := s.Service.ResolveEscalation(c.Request().Context(), c.Param("id"), req.Resolution); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
