package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/audit"
	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/rules"
	"github.com/joescharf/comply/internal/runs"
	"github.com/joescharf/comply/internal/store"
)

// Server exposes the compliance engine as MCP tools.
type Server struct {
	runs    *runs.Service
	rules   *rules.Set
	version string
}

// NewServer creates the MCP server wrapper. Reviews report an error when svc
// has no pipeline.
func NewServer(svc *runs.Service, set *rules.Set, version string) *Server {
	return &Server{runs: svc, rules: set, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("comply", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.checkTool())
	srv.AddTool(s.reviewTool())
	srv.AddTool(s.listRulesTool())
	srv.AddTool(s.listRunsTool())
	srv.AddTool(s.getAuditTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

const limitsDescription = `Word limit per channel, e.g. {"mobile": 30, "desktop": null}. null means the channel has no limit.`

// comply_check
func (s *Server) checkTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("comply_check",
		mcp.WithDescription("Check marketing copy against the rule catalog and word limits without a reviewer. Returns the verdict and reduction suggestions as JSON. Nothing is recorded."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Marketing copy to check")),
		mcp.WithObject("limits", mcp.Description(limitsDescription)),
	)
	return tool, s.handleCheck
}

func (s *Server) handleCheck(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, errResult := contentArg(request)
	if errResult != nil {
		return errResult, nil
	}
	res, err := runs.Check(s.rules, item)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

// comply_review
func (s *Server) reviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("comply_review",
		mcp.WithDescription("Run the full review pipeline on marketing copy. Every stage decision is recorded in the run's audit log. Returns the run with its final state, verdict and drafts."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Marketing copy to review")),
		mcp.WithObject("limits", mcp.Description(limitsDescription)),
	)
	return tool, s.handleReview
}

func (s *Server) handleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, errResult := contentArg(request)
	if errResult != nil {
		return errResult, nil
	}
	run, _, err := s.runs.Review(ctx, item)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}
	return jsonResult(run)
}

// comply_list_rules
func (s *Server) listRulesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("comply_list_rules",
		mcp.WithDescription("List the compliance rules and review stages in use. Returns JSON with rules (key, severity, citation, trigger patterns, fixes) and stages."),
	)
	return tool, s.handleListRules
}

func (s *Server) handleListRules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"rules":  s.rules.Catalog.All(),
		"stages": s.rules.Stages,
	})
}

// comply_list_runs
func (s *Server) listRunsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("comply_list_runs",
		mcp.WithDescription("List review runs, newest first. Returns a JSON array with id, state, rounds, overall verdict and creation time."),
		mcp.WithString("state", mcp.Description("Filter by state"),
			mcp.Enum(string(models.StateApproved), string(models.StateRejectedFinal), string(models.StateUnderReview))),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	)
	return tool, s.handleListRuns
}

func (s *Server) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.RunListFilter{
		State: models.PipelineState(request.GetString("state", "")),
		Limit: request.GetInt("limit", 20),
	}
	list, err := s.runs.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}

	type runOut struct {
		ID        string `json:"id"`
		State     string `json:"state"`
		Rounds    int    `json:"rounds"`
		Overall   string `json:"overall,omitempty"`
		Reason    string `json:"reason,omitempty"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]runOut, len(list))
	for i, r := range list {
		out[i] = runOut{
			ID:        r.ID,
			State:     string(r.State),
			Rounds:    r.Rounds,
			Reason:    r.Reason,
			CreatedAt: audit.FormatTimestamp(r.CreatedAt),
		}
		if r.Verdict != nil {
			out[i].Overall = string(r.Verdict.Overall)
		}
	}
	return jsonResult(out)
}

// comply_get_audit
func (s *Server) getAuditTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("comply_get_audit",
		mcp.WithDescription("Get a run's audit log as JSON records (sequence_number, timestamp, reviewer_identity, decision, citations, message). Set verify to also check the hash chain."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID")),
		mcp.WithBoolean("verify", mcp.Description("Include an integrity check of the log")),
	)
	return tool, s.handleGetAudit
}

func (s *Server) handleGetAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: run_id"), nil
	}
	entries, err := s.runs.Audit(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("run not found: %s", runID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read audit log: %v", err)), nil
	}

	if !request.GetBool("verify", false) {
		return jsonResult(audit.Export(entries))
	}
	return jsonResult(map[string]any{
		"entries": audit.Export(entries),
		"verify":  audit.Verify(entries),
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func contentArg(request mcp.CallToolRequest) (models.ContentItem, *mcp.CallToolResult) {
	content, err := request.RequireString("content")
	if err != nil {
		return models.ContentItem{}, mcp.NewToolResultError("missing required parameter: content")
	}
	limits, err := parseLimits(request.GetArguments()["limits"])
	if err != nil {
		return models.ContentItem{}, mcp.NewToolResultError(err.Error())
	}
	return models.NewContentItem(content, limits), nil
}

// parseLimits converts the decoded "limits" argument. JSON numbers arrive
// as float64.
func parseLimits(v any) (models.ChannelLimits, error) {
	const op = "parse limits"
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperr.InvalidInput(op, "limits must be an object of channel to word limit")
	}
	out := make(models.ChannelLimits, len(m))
	for ch, raw := range m {
		switch n := raw.(type) {
		case nil:
			out[models.Channel(ch)] = nil
		case float64:
			if n != math.Trunc(n) {
				return nil, apperr.InvalidInput(op, "limit for %s must be a whole number", ch)
			}
			out[models.Channel(ch)] = models.Limit(int(n))
		default:
			return nil, apperr.InvalidInput(op, "limit for %s must be a number or null", ch)
		}
	}
	return out, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
