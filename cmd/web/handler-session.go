package main

import (
	"fmt"
	"log/slog"
	"net/http"
)

const sessionUserIDKey = "userID"

type signInRequest struct {
	DisplayName string `json:"display_name"`
}

// signIn creates a user and binds it to the session cookie.
//
// Proving who the user is happens in front of this service, so signing in only needs a display name.
func (app *application) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}

	userID, err := app.training.CreateUser(r.Context(), req.DisplayName)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	if err = app.sessionManager.RenewToken(r.Context()); err != nil {
		app.serverError(w, r, fmt.Errorf("renew session token: %w", err))
		return
	}
	app.sessionManager.Put(r.Context(), sessionUserIDKey, userID)
	app.logger.LogAttrs(r.Context(), slog.LevelInfo, "user signed in", slog.Int("user_id", userID))

	app.writeJSON(w, r, http.StatusCreated, map[string]int{"user_id": userID})
}

func (app *application) signOut(w http.ResponseWriter, r *http.Request) {
	if err := app.sessionManager.Destroy(r.Context()); err != nil {
		app.serverError(w, r, fmt.Errorf("destroy session: %w", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
