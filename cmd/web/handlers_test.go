package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shamoevthomas/forceapp/internal/e2etest"
	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/ptr"
	"github.com/shamoevthomas/forceapp/internal/testhelpers"
	"github.com/shamoevthomas/forceapp/internal/views"
)

func testLookupEnv(key string) (string, bool) {
	switch key {
	case "FORCEAPP_SQLITE_URL":
		return ":memory:", true
	case "FORCEAPP_ADDR":
		return "localhost:0", true
	default:
		return "", false
	}
}

func wantStatus(t *testing.T, err error, code int) {
	t.Helper()
	var statusErr *e2etest.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want status %d", err, code)
	}
	if statusErr.Code != code {
		t.Fatalf("status = %d (%s), want %d", statusErr.Code, statusErr.Message, code)
	}
}

const pushRestProgram = `{
  "name": "Push",
  "days": [
    {"weekday": 1, "label": "Push", "exercises": [
      {"name": "Bench press", "target_sets": 4, "target_reps": 10, "current_weight_kg": 80, "increment": "2.5"}
    ]},
    {"weekday": 5, "label": "Mobility", "rest_day": true}
  ]
}`

// rawJSON is a request body sent verbatim.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return json.RawMessage(r).MarshalJSON()
}

func fullSets(weight float64, reps, n int) []progression.Entry {
	sets := make([]progression.Entry, n)
	for i := range sets {
		sets[i] = progression.Entry{WeightKg: ptr.Ref(weight), Reps: ptr.Ref(reps), IsAMRAP: false}
	}
	return sets
}

func Test_application_training(t *testing.T) {
	ctx := t.Context()
	server, err := e2etest.StartServer(t, testhelpers.NewWriter(t), testLookupEnv, run)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	client := server.Client()

	t.Run("Anonymous requests are rejected", func(t *testing.T) {
		wantStatus(t, client.Get(ctx, "/api/stats", nil), http.StatusUnauthorized)
	})

	if _, err = client.SignIn(ctx, "Thomas"); err != nil {
		t.Fatalf("Failed to sign in: %v", err)
	}

	t.Run("No active program", func(t *testing.T) {
		wantStatus(t, client.Get(ctx, "/api/program", nil), http.StatusConflict)

		var session views.Session
		if err = client.Get(ctx, "/api/sessions/2026-10-19", &session); err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session.State != "NO_ACTIVE_PROGRAM" {
			t.Errorf("state = %s, want NO_ACTIVE_PROGRAM", session.State)
		}
	})

	t.Run("Invalid programs", func(t *testing.T) {
		badIncrement := strings.Replace(pushRestProgram, `"2.5"`, `"3"`, 1)
		wantStatus(t, client.Do(ctx, http.MethodPost, "/api/programs", rawJSON(badIncrement), nil),
			http.StatusUnprocessableEntity)

		badWeekday := strings.Replace(pushRestProgram, `"weekday": 5`, `"weekday": 8`, 1)
		wantStatus(t, client.Do(ctx, http.MethodPost, "/api/programs", rawJSON(badWeekday), nil),
			http.StatusUnprocessableEntity)

		wantStatus(t, client.Do(ctx, http.MethodPost, "/api/programs", rawJSON(`{"name": "x", "weeks": 3}`), nil),
			http.StatusBadRequest)
	})

	var program views.Program
	if err = client.Do(ctx, http.MethodPost, "/api/programs", rawJSON(pushRestProgram), &program); err != nil {
		t.Fatalf("Failed to create program: %v", err)
	}
	if len(program.Days) != 2 || len(program.Days[0].Exercises) != 1 {
		t.Fatalf("program = %+v, want two days and one exercise", program)
	}
	bench := program.Days[0].Exercises[0]

	t.Run("First session gets default sets", func(t *testing.T) {
		var session views.Session
		if err = client.Get(ctx, "/api/sessions/2026-10-19", &session); err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session.State != "UNLOGGED_FIRST_TIME" {
			t.Errorf("state = %s, want UNLOGGED_FIRST_TIME", session.State)
		}
		if len(session.Exercises) != 1 || len(session.Exercises[0].Sets) != 4 {
			t.Fatalf("exercises = %+v, want four bench sets", session.Exercises)
		}
		if w := session.Exercises[0].Sets[0].WeightKg; w == nil || *w != 80 {
			t.Errorf("first set weight = %v, want 80", w)
		}
	})

	t.Run("Commit and resolve again", func(t *testing.T) {
		body := map[string]any{
			"skipped": false,
			"exercises": []map[string]any{
				{"exercise_id": bench.ID, "sets": fullSets(80, 10, 4)},
			},
		}
		var result views.CommitResult
		if err = client.Do(ctx, http.MethodPut, "/api/sessions/2026-10-19", body, &result); err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
		if !result.Completed || result.Sets != 4 {
			t.Errorf("result = %+v, want four completed sets", result)
		}

		var session views.Session
		if err = client.Get(ctx, "/api/sessions/2026-10-19", &session); err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if session.State != "ALREADY_LOGGED" || !session.Completed {
			t.Errorf("session = %+v, want the completed log", session)
		}

		if err = client.Get(ctx, "/api/sessions/2026-10-26", &session); err != nil {
			t.Fatalf("Failed to get next session: %v", err)
		}
		if session.State != "UNLOGGED_WITH_HISTORY" {
			t.Errorf("next state = %s, want UNLOGGED_WITH_HISTORY", session.State)
		}
		if w := session.Exercises[0].Sets[0].WeightKg; w == nil || *w != 82.5 {
			t.Errorf("next weight = %v, want 82.5", w)
		}
	})

	t.Run("Commit errors", func(t *testing.T) {
		restDay := map[string]any{"skipped": true, "exercises": []any{}}
		wantStatus(t, client.Do(ctx, http.MethodPut, "/api/sessions/2026-10-23", restDay, nil), http.StatusConflict)

		unknown := map[string]any{
			"skipped":   false,
			"exercises": []map[string]any{{"exercise_id": "deadlift", "sets": fullSets(100, 5, 1)}},
		}
		wantStatus(t, client.Do(ctx, http.MethodPut, "/api/sessions/2026-10-19", unknown, nil), http.StatusBadRequest)

		wantStatus(t, client.Get(ctx, "/api/sessions/19-10-2026", nil), http.StatusBadRequest)
	})

	t.Run("Two week overview", func(t *testing.T) {
		var week views.Week
		if err = client.Get(ctx, "/api/weeks/2026/43", &week); err != nil {
			t.Fatalf("Failed to get week: %v", err)
		}
		if len(week.Days) != 14 {
			t.Fatalf("days = %d, want 14", len(week.Days))
		}
		if week.Days[0].Date != "2026-10-19" || !week.Days[0].Completed {
			t.Errorf("first day = %+v, want the completed Monday", week.Days[0])
		}
		if week.Days[4].State != "REST_DAY" {
			t.Errorf("friday state = %s, want REST_DAY", week.Days[4].State)
		}

		wantStatus(t, client.Get(ctx, "/api/weeks/2026/54", nil), http.StatusBadRequest)
	})

	t.Run("Stats", func(t *testing.T) {
		var stats views.Stats
		if err = client.Get(ctx, "/api/stats", &stats); err != nil {
			t.Fatalf("Failed to get stats: %v", err)
		}
		if stats.TotalVolumeKg != 3200 || stats.Grade != "Gringalet" || stats.NextGrade != "Crevette" {
			t.Errorf("stats = %+v, want 3200 kg as Gringalet", stats)
		}

		var volume []views.Point
		if err = client.Get(ctx, "/api/stats/volume", &volume); err != nil {
			t.Fatalf("Failed to get volume: %v", err)
		}
		if len(volume) != 1 || volume[0].Value != 3200 {
			t.Errorf("volume = %+v, want one 3200 kg point", volume)
		}

		var progress struct {
			Points []views.Point `json:"points"`
		}
		if err = client.Get(ctx, "/api/exercises/"+bench.ID+"/progress?limit=5", &progress); err != nil {
			t.Fatalf("Failed to get progress: %v", err)
		}
		if len(progress.Points) != 1 || progress.Points[0].Value != 80 {
			t.Errorf("progress = %+v, want one 80 kg point", progress.Points)
		}
	})

	t.Run("Maintenance mode", func(t *testing.T) {
		if err = server.SetFeatureFlag(ctx, "maintenance_mode", true); err != nil {
			t.Fatalf("Failed to enable maintenance mode: %v", err)
		}
		wantStatus(t, client.Get(ctx, "/api/stats", nil), http.StatusServiceUnavailable)
		if err = client.Get(ctx, "/api/healthy", nil); err != nil {
			t.Errorf("health check during maintenance: %v", err)
		}
		if err = server.SetFeatureFlag(ctx, "maintenance_mode", false); err != nil {
			t.Fatalf("Failed to disable maintenance mode: %v", err)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, getErr := http.Get(server.URL() + "/metrics") //nolint:noctx // test
		if getErr != nil {
			t.Fatalf("Failed to get metrics: %v", getErr)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(resp.Body)
		for _, want := range []string{
			`forceapp_web_session_commits_total{outcome="saved"} 1`,
			"forceapp_web_requests_total",
			"go_goroutines",
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("metrics do not contain %q", want)
			}
		}
	})

	t.Run("Reset history", func(t *testing.T) {
		if err = client.Do(ctx, http.MethodDelete, "/api/history", nil, nil); err != nil {
			t.Fatalf("Failed to reset history: %v", err)
		}
		var stats views.Stats
		if err = client.Get(ctx, "/api/stats", &stats); err != nil {
			t.Fatalf("Failed to get stats: %v", err)
		}
		if stats.TotalVolumeKg != 0 || stats.StreakDays != 0 {
			t.Errorf("stats after reset = %+v, want zeroes", stats)
		}
	})

	t.Run("Sign out", func(t *testing.T) {
		if err = client.SignOut(ctx); err != nil {
			t.Fatalf("Failed to sign out: %v", err)
		}
		wantStatus(t, client.Get(ctx, "/api/stats", nil), http.StatusUnauthorized)
	})
}
