// Package contexthelpers carries the authenticated user through request contexts.
//
// The training service reads the user id from the context instead of taking it as a parameter on every call.
package contexthelpers

import (
	"context"
	"net/http"
)

type contextKey string

const (
	isAuthenticatedContextKey     = contextKey("isAuthenticated")
	authenticatedUserIDContextKey = contextKey("authenticatedUserID")
)

// WithUserID returns a copy of ctx authenticated as userID.
func WithUserID(ctx context.Context, userID int) context.Context {
	ctx = context.WithValue(ctx, isAuthenticatedContextKey, true)
	return context.WithValue(ctx, authenticatedUserIDContextKey, userID)
}

// AuthenticateContext authenticates the request context as userID.
func AuthenticateContext(r *http.Request, userID int) *http.Request {
	return r.WithContext(WithUserID(r.Context(), userID))
}

func IsAuthenticated(ctx context.Context) bool {
	isAuthenticated, ok := ctx.Value(isAuthenticatedContextKey).(bool)
	if !ok {
		return false
	}
	return isAuthenticated
}

// AuthenticatedUserID returns 0 for anonymous contexts.
func AuthenticatedUserID(ctx context.Context) int {
	userID, ok := ctx.Value(authenticatedUserIDContextKey).(int)
	if !ok {
		return 0
	}
	return userID
}
