package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/skilltally/internal/tally"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *tally.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/skills", h.ListSkills)
	r.Get("/skills/{name}", h.GetSkill)

	r.Get("/chart.png", h.Chart("png"))
	r.Get("/chart.svg", h.Chart("svg"))

	r.Post("/scan", h.Scan)
	r.Get("/runs", h.ListRuns)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
