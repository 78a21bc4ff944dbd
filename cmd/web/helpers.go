package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shamoevthomas/forceapp/internal/calendar"
	"github.com/shamoevthomas/forceapp/internal/errors"
	"github.com/shamoevthomas/forceapp/internal/progression"
	"github.com/shamoevthomas/forceapp/internal/training"
)

// maxBodyBytes bounds JSON request bodies. A full program or session is a few kilobytes.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.NewSentinel("bad request")

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, fmt.Errorf("encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func (app *application) errorJSON(w http.ResponseWriter, r *http.Request, status int, msg string) {
	app.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.errorJSON(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.errorJSON(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// handleError answers with the status matching err.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var commitErr *training.CommitError
	switch {
	case errors.As(err, &commitErr):
		app.logger.LogAttrs(r.Context(), slog.LevelError, "commit failed",
			slog.String("step", string(commitErr.Step)), slog.Bool("durable", commitErr.Durable()),
			errors.SlogError(err))
		msg := "the session could not be saved"
		if commitErr.Durable() {
			msg = "the session was saved but the streak and grade could not be updated"
		}
		app.errorJSON(w, r, http.StatusInternalServerError, msg)
	case errors.Is(err, training.ErrInvalidProgram),
		errors.Is(err, progression.ErrInvalidIncrement):
		app.errorJSON(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, training.ErrInvalidEntry),
		errors.Is(err, training.ErrInvalidUser):
		app.errorJSON(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, training.ErrNotFound):
		app.notFound(w, r)
	case errors.Is(err, training.ErrRestDay),
		errors.Is(err, training.ErrNoActiveProgram):
		app.errorJSON(w, r, http.StatusConflict, err.Error())
	default:
		app.serverError(w, r, err)
	}
}

// decodeJSON decodes the request body into v and rejects unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must hold a single JSON document", errBadRequest)
	}
	return nil
}

// parseDateParam parses the "date" path parameter as YYYY-MM-DD.
func parseDateParam(r *http.Request) (time.Time, error) {
	date, err := calendar.ParseISODay(r.PathValue("date"))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return date, nil
}

// parseIntParam parses the integer path parameter name and checks that it lies in [lo, hi].
func parseIntParam(r *http.Request, name string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be a number between %d and %d", errBadRequest, name, lo, hi)
	}
	return n, nil
}
