// Package mcpserver registers MCP tools that expose settings operations.
// It adapts the settings engine to the MCP SDK's tool handler interface.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/settings-sync/internal/auth"
	"github.com/alexjbarnes/settings-sync/internal/settings"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools adds all settings tools to the given MCP server.
func RegisterTools(server *mcp.Server, e *settings.Engine, logger *slog.Logger) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "settings_status",
		Description: "Show the current settings version, sync hash, selected backend, active profile, entity counts and the outcome of the last sync cycle.",
	}, statusHandler(e))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "settings_sync_now",
		Description: "Pull settings from the selected sync backend and apply them if they differ from the local copy. Device-local data is kept.",
	}, syncNowHandler(e, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "settings_push",
		Description: "Save the current settings with a new sync hash and push the syncable projection to the selected backend.",
	}, pushHandler(e, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "settings_export_backup",
		Description: "Export the current settings as a backup document. WebDAV credentials and fetched subscription content are not included.",
	}, exportHandler(e))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "settings_restore_backup",
		Description: "Restore settings from a backup document. Invalid proxy servers are skipped. On failure the current settings are unchanged.",
	}, restoreHandler(e, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "settings_factory_reset",
		Description: "Replace all settings with defaults. Requires confirm=true.",
	}, factoryResetHandler(e, logger))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// EmptyInput is used by tools without parameters.
type EmptyInput struct{}

// RestoreInput holds parameters for settings_restore_backup.
type RestoreInput struct {
	Backup string `json:"backup" jsonschema:"required,backup document as JSON text"`
}

// FactoryResetInput holds parameters for settings_factory_reset.
type FactoryResetInput struct {
	Confirm bool `json:"confirm" jsonschema:"required,must be true to reset"`
}

// ExportResult is the output of settings_export_backup.
type ExportResult struct {
	Backup string `json:"backup"`
	Bytes  int    `json:"bytes"`
}

// --- Handlers ---

func statusHandler(e *settings.Engine) mcp.ToolHandlerFor[EmptyInput, *settings.Status] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *settings.Status, error) {
		st := e.Status()
		return textResult(st), &st, nil
	}
}

func syncNowHandler(e *settings.Engine, logger *slog.Logger) mcp.ToolHandlerFor[EmptyInput, *settings.Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *settings.Result, error) {
		res := e.SyncNow(ctx)
		logCall(ctx, logger, "settings_sync_now", res)

		return resultOf(res), &res, nil
	}
}

func pushHandler(e *settings.Engine, logger *slog.Logger) mcp.ToolHandlerFor[EmptyInput, *settings.Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *settings.Result, error) {
		res := e.Push(ctx)
		logCall(ctx, logger, "settings_push", res)

		return resultOf(res), &res, nil
	}
}

func exportHandler(e *settings.Engine) mcp.ToolHandlerFor[EmptyInput, *ExportResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *ExportResult, error) {
		data, err := e.ExportBackup()
		if err != nil {
			return nil, nil, err
		}

		out := &ExportResult{Backup: string(data), Bytes: len(data)}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, out, nil
	}
}

func restoreHandler(e *settings.Engine, logger *slog.Logger) mcp.ToolHandlerFor[RestoreInput, *settings.Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RestoreInput) (*mcp.CallToolResult, *settings.Result, error) {
		res := e.RestoreBackup(ctx, []byte(input.Backup))
		logCall(ctx, logger, "settings_restore_backup", res)

		return resultOf(res), &res, nil
	}
}

func factoryResetHandler(e *settings.Engine, logger *slog.Logger) mcp.ToolHandlerFor[FactoryResetInput, *settings.Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FactoryResetInput) (*mcp.CallToolResult, *settings.Result, error) {
		if !input.Confirm {
			return nil, nil, fmt.Errorf("factory reset requires confirm=true")
		}

		res := e.FactoryReset(ctx)
		logCall(ctx, logger, "settings_factory_reset", res)

		return resultOf(res), &res, nil
	}
}

// logCall records who ran a state-changing tool. The user is set by the
// auth middleware when the call came over HTTP.
func logCall(ctx context.Context, logger *slog.Logger, tool string, res settings.Result) {
	logger.Info("mcp tool called",
		slog.String("tool", tool),
		slog.String("user_id", auth.RequestUserID(ctx)),
		slog.String("ip", auth.RequestRemoteIP(ctx)),
		slog.Bool("success", res.Success),
	)
}

// resultOf renders a settings result, marking failures as tool errors so
// the client sees them as such.
func resultOf(res settings.Result) *mcp.CallToolResult {
	out := textResult(res)
	if !res.Success {
		out.IsError = true
	}

	return out
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
