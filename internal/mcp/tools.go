package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/training"
	"github.com/shamoevthomas/forceapp/internal/views"
)

// --- Tool definitions ---

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Resolve the training session of a date. Returns the state (REST_DAY, UNLOGGED_FIRST_TIME, "+
		"UNLOGGED_WITH_HISTORY, ALREADY_LOGGED or NO_ACTIVE_PROGRAM) and the sets to perform or already logged."),
	mcp.WithString("date", mcp.Description("Date as YYYY-MM-DD. Defaults to today.")),
)

var toolGetWeek = mcp.NewTool("get_week",
	mcp.WithDescription("Two-week overview starting on the Monday of an ISO week: label and state of each day."),
	mcp.WithNumber("year", mcp.Description("ISO year. Defaults to the current one.")),
	mcp.WithNumber("week", mcp.Description("ISO week number. Defaults to the current one.")),
)

var toolGetExerciseProgress = mcp.NewTool("get_exercise_progress",
	mcp.WithDescription("Heaviest completed set of an exercise per session, oldest first."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise id from get_session")),
	mcp.WithNumber("limit", mcp.Description("Number of most recent sessions. Defaults to 10.")),
)

var toolGetStats = mcp.NewTool("get_stats",
	mcp.WithDescription("Current streak, force grade, total lifted volume and the next grade to reach."),
)

// --- Tool handlers ---

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date := calendar.Day(h.now())
	if s := req.GetString("date", ""); s != "" {
		var err error
		if date, err = calendar.ParseISODay(s); err != nil {
			return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
		}
	}

	resolved, err := h.trainer.ResolveSession(ctx, date)
	if err != nil {
		return h.fail(ctx, "get_session", err), nil
	}

	result, err := mcp.NewToolResultJSON(views.NewSession(resolved))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeek(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, week := h.now().ISOWeek()
	year = req.GetInt("year", year)
	week = req.GetInt("week", week)
	if week < 1 || week > 53 {
		return mcp.NewToolResultError("week must be between 1 and 53"), nil
	}

	summaries, err := h.trainer.ResolveWindow(ctx, week, year)
	if err != nil {
		return h.fail(ctx, "get_week", err), nil
	}

	result, err := mcp.NewToolResultJSON(views.NewWeek(year, week, summaries))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExerciseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exerciseID, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}
	limit := req.GetInt("limit", training.DefaultProgressLimit)

	points, err := h.trainer.ExerciseProgress(ctx, exerciseID, limit)
	if err != nil {
		return h.fail(ctx, "get_exercise_progress", err), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercise_id": exerciseID,
		"points":      views.NewProgress(points),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.trainer.Stats(ctx)
	if err != nil {
		return h.fail(ctx, "get_stats", err), nil
	}

	result, err := mcp.NewToolResultJSON(views.NewStats(stats))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
