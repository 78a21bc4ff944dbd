package main

import (
	"net/http"

	"github.com/shamoevthomas/forceapp/internal/training"
	"github.com/shamoevthomas/forceapp/internal/views"
)

func (app *application) weekGET(w http.ResponseWriter, r *http.Request) {
	year, err := parseIntParam(r, "year", 1, 9999) //nolint:mnd // four digit years
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	week, err := parseIntParam(r, "week", 1, 53) //nolint:mnd // ISO weeks
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	summaries, err := app.training.ResolveWindow(r.Context(), week, year)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, views.NewWeek(year, week, summaries))
}

func (app *application) sessionGET(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		app.handleError(w, r, err)
		return
	}

	resolved, err := app.training.ResolveSession(r.Context(), date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, views.NewSession(resolved))
}

type commitRequest struct {
	Skipped   bool                       `json:"skipped"`
	Exercises []training.ExerciseEntries `json:"exercises"`
}

// sessionPUT saves or skips the session of a date. Saving the same date again replaces the earlier entry.
func (app *application) sessionPUT(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateParam(r)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	var req commitRequest
	if err = decodeJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}

	result, err := app.training.CommitSession(r.Context(), training.CommitRequest{
		Date:      date,
		Skipped:   req.Skipped,
		Exercises: req.Exercises,
	})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, views.NewCommitResult(result))
}
