// Package mcp exposes the governance operations as MCP tools for
// agent clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"bizops-governance/backend/internal/services"
	"bizops-governance/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	service   services.Governance
}

func NewServer(service services.Governance) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Governance Engine",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		service: service,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"evaluate_workflow",
			mcp.WithDescription("Evaluate a workflow's governance health without persisting"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleEvaluate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"enforce_workflow",
			mcp.WithDescription("Evaluate a workflow and persist the resulting health"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleEnforce,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"validate_workflow",
			mcp.WithDescription("Check whether a workflow passes governance with no errors"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleValidate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"remediate_violation",
			mcp.WithDescription("Auto-remediate one violation class on a workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("violation_type", mcp.Required(),
				mcp.Description("One of: missing_approval, insufficient_sla, insufficient_approvals, role_diversity")),
		),
		s.handleRemediate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_automation",
			mcp.WithDescription("Run the governance automation sweep for a business"),
			mcp.WithString("business_id", mcp.Required(), mcp.Description("The ID of the business")),
		),
		s.handleRunAutomation,
	)
}

func stringArg(request mcp.CallToolRequest, name string) (string, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", false
	}
	value, ok := args[name].(string)
	return value, ok && value != ""
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, ok := stringArg(request, "workflow_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	health, err := s.service.EvaluateWorkflow(ctx, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to evaluate: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(health)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleEnforce(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, ok := stringArg(request, "workflow_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	result, err := s.service.EnforceWorkflow(ctx, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to enforce: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, ok := stringArg(request, "workflow_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}

	result, err := s.service.ValidateWorkflow(ctx, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to validate: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRemediate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, ok := stringArg(request, "workflow_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: workflow_id"), nil
	}
	violationType, ok := stringArg(request, "violation_type")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: violation_type"), nil
	}

	result, err := s.service.RemediateViolation(ctx, workflowID, models.ViolationType(violationType))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to remediate: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRunAutomation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	businessID, ok := stringArg(request, "business_id")
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: business_id"), nil
	}

	result, err := s.service.RunAutomation(ctx, businessID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run automation: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
