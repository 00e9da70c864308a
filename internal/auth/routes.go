package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/EmpoweredVote/EV-Profiles/internal/middleware"
)

// SetupRoutes returns the /auth router. limit wraps the credential routes.
func SetupRoutes(h *Handler, sessions middleware.SessionFetcher, limit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.With(limit).Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/password", h.UpdatePassword)
			r.Post("/token", h.IssueToken)
		})
	})

	return r
}

// SetupUserRoutes returns the /users router. Registration is public; a user
// may only read and update themselves.
func SetupUserRoutes(h *Handler, sessions middleware.SessionFetcher, limit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.With(limit).Post("/", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))
		r.Get("/{id}", h.Show)
		r.With(limit).Patch("/{id}", h.Update)
	})

	return r
}
