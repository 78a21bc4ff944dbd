// Package mcp exposes the training service of one user as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shamoevthomas/forceapp/internal/training"
)

// Trainer is the part of the training service the tools read from.
type Trainer interface {
	ResolveSession(ctx context.Context, date time.Time) (training.ResolvedSession, error)
	ResolveWindow(ctx context.Context, week, year int) ([]training.DaySummary, error)
	ExerciseProgress(ctx context.Context, exerciseID string, limit int) ([]training.ProgressPoint, error)
	Stats(ctx context.Context) (training.Stats, error)
}

// New creates an MCP server with every tool registered.
func New(trainer Trainer, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("ForceAPP", version,
		server.WithToolCapabilities(false),
		server.WithInstructions("ForceAPP training log. Look up the prescribed or logged session of a date, "+
			"the two-week overview, exercise progress and the streak and grade of the user."),
	)

	h := &handlers{trainer: trainer, logger: logger, now: time.Now}

	s.AddTools(
		server.ServerTool{Tool: toolGetSession, Handler: h.getSession},
		server.ServerTool{Tool: toolGetWeek, Handler: h.getWeek},
		server.ServerTool{Tool: toolGetExerciseProgress, Handler: h.getExerciseProgress},
		server.ServerTool{Tool: toolGetStats, Handler: h.getStats},
	)

	return s
}

// handlers holds the dependencies of the tool handlers.
type handlers struct {
	trainer Trainer
	logger  *slog.Logger
	now     func() time.Time
}

func (h *handlers) fail(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	h.logger.LogAttrs(ctx, slog.LevelError, "mcp tool failed", slog.String("tool", tool), slog.Any("error", err))
	return mcp.NewToolResultError("query failed: " + err.Error())
}
