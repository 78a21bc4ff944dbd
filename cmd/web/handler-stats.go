package main

import (
	"net/http"
	"strconv"

	"github.com/shamoevthomas/forceapp/internal/training"
	"github.com/shamoevthomas/forceapp/internal/views"
)

func (app *application) statsGET(w http.ResponseWriter, r *http.Request) {
	stats, err := app.training.Stats(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, views.NewStats(stats))
}

func (app *application) volumeGET(w http.ResponseWriter, r *http.Request) {
	points, err := app.training.VolumeHistory(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, views.NewVolumeHistory(points))
}

// exerciseProgressGET returns the heaviest set per session of an exercise. The limit query parameter is optional.
func (app *application) exerciseProgressGET(w http.ResponseWriter, r *http.Request) {
	limit := training.DefaultProgressLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			app.errorJSON(w, r, http.StatusBadRequest, "limit must be a positive number")
			return
		}
	}

	points, err := app.training.ExerciseProgress(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]any{
		"exercise_id": r.PathValue("id"),
		"points":      views.NewProgress(points),
	})
}

func (app *application) historyDELETE(w http.ResponseWriter, r *http.Request) {
	if err := app.training.ResetHistory(r.Context()); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
