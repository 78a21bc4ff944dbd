package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()
	app.mux = mux

	var (
		withoutMaintenanceMode = func(next http.Handler) http.Handler {
			return secureHeaders(app.crossOriginProtection(app.timeout(noCache(next))))
		}
		noAuth = func(next http.Handler) http.Handler {
			return withoutMaintenanceMode(next)
		}
		session = func(next http.Handler) http.Handler {
			return withoutMaintenanceMode(app.sessionManager.LoadAndSave(app.authenticate(app.maintenanceMode(next))))
		}
		mustSession = func(next http.Handler) http.Handler {
			return session(app.mustAuthenticate(next))
		}
	)

	mux.Handle("GET /api/healthy", noAuth(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/test/timeout", noAuth(http.HandlerFunc(app.testTimeout)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})) //nolint:exhaustruct // defaults

	mux.Handle("POST /api/session", session(http.HandlerFunc(app.signIn)))
	mux.Handle("DELETE /api/session", session(http.HandlerFunc(app.signOut)))

	mux.Handle("GET /api/program", mustSession(http.HandlerFunc(app.programGET)))
	mux.Handle("GET /api/programs", mustSession(http.HandlerFunc(app.programsGET)))
	mux.Handle("POST /api/programs", mustSession(http.HandlerFunc(app.programsPOST)))

	mux.Handle("GET /api/weeks/{year}/{week}", mustSession(http.HandlerFunc(app.weekGET)))
	mux.Handle("GET /api/sessions/{date}", mustSession(http.HandlerFunc(app.sessionGET)))
	mux.Handle("PUT /api/sessions/{date}", mustSession(http.HandlerFunc(app.sessionPUT)))

	mux.Handle("GET /api/stats", mustSession(http.HandlerFunc(app.statsGET)))
	mux.Handle("GET /api/stats/volume", mustSession(http.HandlerFunc(app.volumeGET)))
	mux.Handle("GET /api/exercises/{id}/progress", mustSession(http.HandlerFunc(app.exerciseProgressGET)))
	mux.Handle("DELETE /api/history", mustSession(http.HandlerFunc(app.historyDELETE)))

	mux.Handle("/", noAuth(http.HandlerFunc(app.notFound)))

	return app.recoverPanic(app.logAndTraceRequest(mux))
}
