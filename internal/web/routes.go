package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/face-signin/internal/web/handlers"
	"github.com/kozaktomas/face-signin/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	signInHandler := handlers.NewSignInHandler(s.deps.Service, s.cfg.MaxUploadBytes, s.log)
	clientsHandler := handlers.NewClientsHandler(s.deps.Directory, s.deps.Service, s.deps.Photos, s.log)
	tasksHandler := handlers.NewTasksHandler(s.deps.Tasks, s.log)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck(s.deps.Ping, s.log))
	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/api/v1", func(r chi.Router) {
		// Kiosk routes, throttled per capture stream
		r.Group(func(r chi.Router) {
			r.Use(middleware.CaptureStream())

			r.Post("/signin", signInHandler.SignIn)
			r.Post("/register", signInHandler.Register)
		})

		// Directory routes require a token from a granted sign-in
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken(s.deps.Tokens))

			r.Get("/me", clientsHandler.Me)
			r.Get("/clients", clientsHandler.List)
			r.Get("/clients/{id}", clientsHandler.Get)
			r.Delete("/clients/{id}", clientsHandler.Delete)
			r.Put("/clients/{id}/status", clientsHandler.UpdateStatus)
			r.Get("/clients/{id}/photo", clientsHandler.Photo)

			r.Get("/clients/{id}/tasks", tasksHandler.List)
			r.Post("/clients/{id}/tasks", tasksHandler.Create)
			r.Delete("/clients/{id}/tasks/{taskID}", tasksHandler.Delete)
		})
	})
}
