// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes skill totals and scans to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/skilltally/internal/apperr"
	"github.com/starford/skilltally/internal/models"
	"github.com/starford/skilltally/internal/tally"
)

// NoteFormatURI identifies the note format resource.
const NoteFormatURI = "skilltally://note-format"

// Server wraps the MCP server with skilltally tools.
type Server struct {
	mcp *server.MCPServer
	svc *tally.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *tally.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"skilltally",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("top_skills",
		mcp.WithDescription("List the most frequently requested skills with their point totals."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of skills (default 20, 0 for all)")),
	), s.topSkills)

	s.mcp.AddTool(mcp.NewTool("skill_count",
		mcp.WithDescription("Return the point total for a single skill."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill name exactly as linked in notes, e.g. Python")),
	), s.skillCount)

	s.mcp.AddTool(mcp.NewTool("scan_notes",
		mcp.WithDescription("Count skills in new job notes, mark them processed, and update the totals and chart."),
	), s.scanNotes)

	s.mcp.AddTool(mcp.NewTool("preview_scan",
		mcp.WithDescription("Report which notes the next scan would count or filter, without changing anything."),
	), s.previewScan)

	s.mcp.AddTool(mcp.NewTool("run_history",
		mcp.WithDescription("List recent scan runs, newest first. Empty unless ledger tracking is enabled."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.runHistory)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Describe how job notes must be written so their skills are counted."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Job Note Format",
			mcp.WithResourceDescription("How job description notes are tagged and how skills are linked."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) topSkills(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", tally.DefaultTopN)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}
	skills, err := s.svc.Counts(limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if skills == nil {
		skills = []models.SkillCount{}
	}
	return jsonResult(skills)
}

func (s *Server) skillCount(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sc, err := s.svc.Skill(name)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultText(fmt.Sprintf("%s: 0 pts (not seen in any counted note)", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %d pts", sc.Name, sc.Count)), nil
}

func (s *Server) scanNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	run, err := s.svc.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(run)
}

func (s *Server) previewScan(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Preview(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes := res.Notes
	if notes == nil {
		notes = []models.NoteResult{}
	}
	return jsonResult(map[string]any{
		"notes":      notes,
		"increments": res.Increments.Sorted(),
	})
}

func (s *Server) runHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	runs, err := s.svc.History(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(runs)
}

func (s *Server) getNoteFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
