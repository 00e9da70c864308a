package profiles

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/EV-Profiles/internal/middleware"
)

func SetupRoutes(h *Handler, sessions middleware.SessionFetcher, limit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(sessions))

	r.Get("/", h.List)
	r.Get("/{id}", h.Show)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/evaluate", h.Evaluate)
	})

	return r
}
