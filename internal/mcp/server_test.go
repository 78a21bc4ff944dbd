package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shamoevthomas/forceapp/internal/testhelpers"
	"github.com/shamoevthomas/forceapp/internal/training"
)

type fakeTrainer struct {
	date     time.Time
	week     int
	year     int
	limit    int
	failWith error
}

func (f *fakeTrainer) ResolveSession(_ context.Context, date time.Time) (training.ResolvedSession, error) {
	f.date = date
	return training.ResolvedSession{
		Date:      date,
		State:     training.StateRestDay,
		Day:       nil,
		Log:       nil,
		Exercises: nil,
	}, f.failWith
}

func (f *fakeTrainer) ResolveWindow(_ context.Context, week, year int) ([]training.DaySummary, error) {
	f.week, f.year = week, year
	return nil, f.failWith
}

func (f *fakeTrainer) ExerciseProgress(_ context.Context, _ string, limit int) ([]training.ProgressPoint, error) {
	f.limit = limit
	return nil, f.failWith
}

func (f *fakeTrainer) Stats(context.Context) (training.Stats, error) {
	return training.Stats{StreakDays: 4, Grade: "Costaud", TotalVolumeKg: 60000, NextGrade: "Guerrier",
		NextGradeVolumeKg: 150000}, f.failWith
}

func newTestHandlers(t *testing.T, trainer *fakeTrainer) *handlers {
	t.Helper()
	return &handlers{
		trainer: trainer,
		logger:  testhelpers.NewLogger(testhelpers.NewWriter(t)),
		now:     func() time.Time { return time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC) },
	}
}

func request(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want text", result.Content[0])
	}
	return text.Text
}

func TestGetSession(t *testing.T) {
	t.Parallel()

	trainer := &fakeTrainer{}
	h := newTestHandlers(t, trainer)

	result, err := h.getSession(t.Context(), request(map[string]any{}))
	if err != nil || result.IsError {
		t.Fatalf("getSession() = %v, %v", result, err)
	}
	if got := trainer.date.Format(time.DateOnly); got != "2026-10-21" {
		t.Errorf("resolved %s, want today", got)
	}
	if text := resultText(t, result); !strings.Contains(text, `"state":"REST_DAY"`) {
		t.Errorf("result = %s, want the rest day state", text)
	}

	if _, err = h.getSession(t.Context(), request(map[string]any{"date": "2026-10-19"})); err != nil {
		t.Fatalf("getSession() error = %v", err)
	}
	if got := trainer.date.Format(time.DateOnly); got != "2026-10-19" {
		t.Errorf("resolved %s, want the requested date", got)
	}

	result, _ = h.getSession(t.Context(), request(map[string]any{"date": "19/10/2026"}))
	if !result.IsError {
		t.Error("malformed date did not fail")
	}
}

func TestGetWeek(t *testing.T) {
	t.Parallel()

	trainer := &fakeTrainer{}
	h := newTestHandlers(t, trainer)

	if result, err := h.getWeek(t.Context(), request(map[string]any{})); err != nil || result.IsError {
		t.Fatalf("getWeek() = %v, %v", result, err)
	}
	if trainer.year != 2026 || trainer.week != 43 {
		t.Errorf("resolved week %d/%d, want the current 2026/43", trainer.year, trainer.week)
	}

	if result, _ := h.getWeek(t.Context(), request(map[string]any{"week": 54})); !result.IsError {
		t.Error("week 54 did not fail")
	}
}

func TestGetExerciseProgress(t *testing.T) {
	t.Parallel()

	trainer := &fakeTrainer{}
	h := newTestHandlers(t, trainer)

	if result, _ := h.getExerciseProgress(t.Context(), request(map[string]any{})); !result.IsError {
		t.Error("missing exercise_id did not fail")
	}
	result, err := h.getExerciseProgress(t.Context(), request(map[string]any{"exercise_id": "bench"}))
	if err != nil || result.IsError {
		t.Fatalf("getExerciseProgress() = %v, %v", result, err)
	}
	if trainer.limit != training.DefaultProgressLimit {
		t.Errorf("limit = %d, want the default", trainer.limit)
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, &fakeTrainer{})
	result, err := h.getStats(t.Context(), request(nil))
	if err != nil || result.IsError {
		t.Fatalf("getStats() = %v, %v", result, err)
	}
	if text := resultText(t, result); !strings.Contains(text, `"grade":"Costaud"`) {
		t.Errorf("result = %s, want the grade", text)
	}

	failing := newTestHandlers(t, &fakeTrainer{failWith: errors.New("database is closed")})
	if result, _ = failing.getStats(t.Context(), request(nil)); !result.IsError {
		t.Error("failing service did not produce an error result")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	s := New(&fakeTrainer{}, "test", testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if s == nil {
		t.Fatal("New() returned nil")
	}
}
