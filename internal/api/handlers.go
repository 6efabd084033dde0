// Package api contains the HTTP handlers for the governance service
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"bizops-governance/backend/internal/repository"
	"bizops-governance/backend/internal/services"
)

// Server holds the dependencies for the API server.
type Server struct {
	Service services.Governance
}

// NewServer creates a new Server.
func NewServer(service services.Governance) *Server {
	return &Server{Service: service}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// HandleHealth returns basic service liveness (always 200 OK).
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "bizops-governance",
		Version:   "1.0.0",
	})
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// problem writes an RFC 7807 Problem Details JSON error response.
func problem(c echo.Context, status int, title, detail string) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// serviceError maps service-layer failures onto problem responses.
// Missing records become 404; everything else surfaces as-is with 500.
func serviceError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Not Found", err.Error())
	}
	return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
}
