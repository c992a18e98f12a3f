package main

import (
	"study-notes/handlers"
	appmw "study-notes/middleware"
	"study-notes/ratelimit"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func newRouter(h *handlers.Handler, sessions *appmw.SessionResolver, limiter ratelimit.Limiter, corsOrigin string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(appmw.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(appmw.CORS(corsOrigin))
	r.Use(appmw.SecurityHeaders)
	r.Use(sessions.LoadSession)

	r.Get("/healthz", handlers.Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(appmw.RateLimit(limiter, "register")).Post("/register", h.Register)
		r.With(appmw.RateLimit(limiter, "login")).Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/session", h.Session)
	})

	r.Group(func(r chi.Router) {
		r.Use(appmw.RequireAuth)

		r.Get("/api/notes", h.GetNotes)
		r.Get("/api/notes/{id}", h.GetNote)
		r.Post("/api/notes", h.CreateNote)
		r.Patch("/api/notes", h.ModerateNote)
		r.Delete("/api/notes", h.DeleteNote)

		r.Get("/api/comments", h.GetComments)
		r.Post("/api/comments", h.CreateComment)
		r.Patch("/api/comments", h.UpdateComment)
		r.Delete("/api/comments", h.DeleteComment)

		r.Patch("/api/users", h.UpdateUser)
		r.Delete("/api/users", h.DeleteUser)
	})

	return r
}
