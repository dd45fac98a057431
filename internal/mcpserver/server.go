// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes printdeck tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/printdeck/internal/apperr"
	"github.com/starford/printdeck/internal/gallery"
	"github.com/starford/printdeck/internal/gcodemeta"
	"github.com/starford/printdeck/internal/modelservice"
)

// Server wraps the MCP server with printdeck tools.
type Server struct {
	mcp *server.MCPServer
	svc *modelservice.Service
}

// New creates a new MCP server with all printdeck tools registered.
func New(svc *modelservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"printdeck",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_models",
		mcp.WithDescription("Full-text search through model names and metadata (materials, G-code files, print times)."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchModels)

	s.mcp.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List models in the library, optionally filtered by material and ordered by a sort key."),
		mcp.WithString("material", mcp.Description("Optional material filter (e.g. PLA); empty for all")),
		mcp.WithString("sort", mcp.Description("Sort key: last_modified, time_created, name_asc, name_desc, print_time")),
	), s.listModels)

	s.mcp.AddTool(mcp.NewTool("get_model",
		mcp.WithDescription("Read a model's full record: files, G-code variants, materials, active state. "+
			"The sidecar format is described by the printdeck://sidecar-format resource."),
		mcp.WithString("leaf", mcp.Required(), mcp.Description("Folder leaf of the model (e.g. Benchy_Boat)")),
	), s.getModel)

	s.mcp.AddTool(mcp.NewTool("set_model_active",
		mcp.WithDescription("Activate or deactivate a model. Activating copies its G-code files into the "+
			"printer-visible active directory; deactivating removes them."),
		mcp.WithString("leaf", mcp.Required(), mcp.Description("Folder leaf of the model")),
		mcp.WithBoolean("active", mcp.Required(), mcp.Description("true to activate, false to deactivate")),
	), s.setModelActive)

	s.mcp.AddTool(mcp.NewTool("extract_gcode_metadata",
		mcp.WithDescription("Extract material, colour, and print-time metadata from a G-code file's slicer comments."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Filesystem path to the .gcode file")),
	), s.extractGcodeMetadata)

	s.mcp.AddTool(mcp.NewTool("get_sidecar_contract",
		mcp.WithDescription("Returns the canonical model.json sidecar format contract. "+
			"Call this before interpreting or producing sidecar data."),
	), s.getSidecarContract)

	// Resource: sidecar format contract.
	s.mcp.AddResource(
		mcp.NewResource("printdeck://sidecar-format", "Sidecar Format Contract",
			mcp.WithResourceDescription("Canonical model.json sidecar format used by every model folder."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSidecarFormatResource,
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

func (s *Server) searchModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	material := ""
	if v, err := req.RequireString("material"); err == nil {
		material = v
	}
	sort := gallery.DefaultSort
	if v, err := req.RequireString("sort"); err == nil {
		sort = gallery.ParseSortKey(v)
	}

	listed, _, err := s.svc.List(ctx, "", material, sort)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, m := range listed {
		line := m.FolderLeaf
		if len(m.Materials) > 0 {
			line += "  [" + strings.Join(m.Materials, ", ") + "]"
		}
		if m.Active {
			line += "  (active)"
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no models in library"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	leaf, err := req.RequireString("leaf")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Get(ctx, leaf)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", leaf)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(m, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setModelActive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	leaf, err := req.RequireString("leaf")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	active, err := req.RequireBool("active")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	m, err := s.svc.SetActive(ctx, leaf, active)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", leaf)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	if m.Active {
		return mcp.NewToolResultText(fmt.Sprintf("activated: %s (%d file(s) in active directory)",
			leaf, len(m.ActiveGcodeFiles))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deactivated: %s", leaf)), nil
}

func (s *Server) extractGcodeMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta := gcodemeta.Extract(path, 0)
	out, _ := json.MarshalIndent(map[string]string{
		"material":   meta.Material,
		"colour":     meta.Colour,
		"print_time": meta.PrintTime,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSidecarContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SidecarFormatContract), nil
}

func (s *Server) readSidecarFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "printdeck://sidecar-format",
			MIMEType: "text/markdown",
			Text:     SidecarFormatContract,
		},
	}, nil
}
