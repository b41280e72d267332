package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// MCPDeps holds dependencies for the MCP server. It reuses the HTTP
// layer's wiring.
type MCPDeps struct {
	App AppDeps
}

// NewMCPServer creates an MCP server exposing the export pipeline as
// tools and the analytics views as resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"sprintdeck",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sprintdeck — sprint review report generation: export presentations to pdf, html, markdown and more."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("export_report",
			mcp.WithDescription("Export a sprint review presentation to the requested format and return the artifact."),
			mcp.WithString("presentation", mcp.Description("Presentation JSON: {id, title, sprint_name, slides}"), mcp.Required()),
			mcp.WithString("format", mcp.Description("Target format (see list_formats)"), mcp.Required()),
			mcp.WithString("quality", mcp.Description("Quality tier: low, medium, or high (default medium)")),
		),
		mcpExportReport(deps),
	)

	s.AddTool(
		mcp.NewTool("list_formats",
			mcp.WithDescription("List the supported export formats and their file extensions."),
		),
		mcpListFormats(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"sprintdeck://stats",
			"Export Statistics",
			mcp.WithResourceDescription("Export totals, cache statistics, and error counts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"sprintdeck://history",
			"Export History",
			mcp.WithResourceDescription("Last 20 export events as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceHistory(deps),
	)

	return s
}

func mcpExportReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		presJSON, err := req.RequireString("presentation")
		if err != nil {
			return mcpError("presentation is required"), nil
		}
		format, err := req.RequireString("format")
		if err != nil {
			return mcpError("format is required"), nil
		}

		var p model.Presentation
		if err := json.Unmarshal([]byte(presJSON), &p); err != nil {
			return mcpError(fmt.Sprintf("invalid presentation JSON: %v", err)), nil
		}

		opts := model.ExportOptions{
			Format:  model.Format(format),
			Quality: model.Quality(req.GetString("quality", "")),
		}

		outcome, err := deps.App.Exporter.Export(ctx, &p, nil, nil, nil, opts, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("export failed: %v", err)), nil
		}

		res := outcome.Result
		out := map[string]any{
			"file_name":      res.FileName,
			"format":         res.Format,
			"byte_size":      res.ByteSize,
			"cache_hit":      outcome.CacheHit,
			"content_base64": base64.StdEncoding.EncodeToString(res.Payload),
		}
		if outcome.Report != nil {
			out["quality_score"] = outcome.Report.Score
			out["quality_status"] = outcome.Report.Status
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListFormats(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type formatInfo struct {
			Format    model.Format `json:"format"`
			Extension string       `json:"extension"`
		}
		infos := make([]formatInfo, 0, len(deps.App.Formats))
		for _, f := range deps.App.Formats {
			infos = append(infos, formatInfo{Format: f, Extension: f.Extension()})
		}
		b, err := json.Marshal(infos)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal formats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		agg, err := deps.App.Recorder.Aggregates()
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate events: %w", err)
		}
		errCounts, err := deps.App.Recorder.ErrorCounts()
		if err != nil {
			return nil, fmt.Errorf("failed to count errors: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"exports":        agg,
			"cache":          deps.App.Cache.Stats(),
			"errors_by_code": errCounts,
			"recovery_rate":  deps.App.Classifier.RecoveryRate(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceHistory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		events, err := deps.App.Recorder.RecentEvents(20)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}

		b, err := json.Marshal(events)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
