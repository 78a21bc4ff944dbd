package main

import (
	"net/http"

	"github.com/shamoevthomas/forceapp/internal/training"
	"github.com/shamoevthomas/forceapp/internal/views"
)

func (app *application) programGET(w http.ResponseWriter, r *http.Request) {
	program, err := app.training.ActiveProgram(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, views.NewProgram(program))
}

func (app *application) programsGET(w http.ResponseWriter, r *http.Request) {
	programs, err := app.training.ListPrograms(r.Context())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	out := make([]views.Program, len(programs))
	for i, p := range programs {
		out[i] = views.NewProgram(p)
	}
	app.writeJSON(w, r, http.StatusOK, out)
}

// programsPOST creates a program from the request body and makes it the active one.
func (app *application) programsPOST(w http.ResponseWriter, r *http.Request) {
	var draft training.ProgramDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		app.handleError(w, r, err)
		return
	}

	program, err := app.training.CreateProgram(r.Context(), draft)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, views.NewProgram(program))
}
