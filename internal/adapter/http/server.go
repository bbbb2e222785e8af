package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cinescribe/cinescribe/internal/adapter/http/middleware"
	"github.com/cinescribe/cinescribe/internal/port"
	"github.com/cinescribe/cinescribe/internal/service"
	"github.com/cinescribe/cinescribe/internal/telemetry"
)

type Server struct {
	router chi.Router
}

func NewServer(jobs JobService, archive port.ScriptArchive, eventBus *service.EventBus, videosDir string, maxUploadMB int) *Server {
	handlers := NewHandlers(jobs, archive, videosDir, maxUploadMB)
	sseHandler := NewSSEHandler(eventBus, jobs)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Get("/healthz", handlers.Health())
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", handlers.CreateJob())
		r.Get("/{id}", handlers.GetJob())
		r.Post("/{id}/cancel", handlers.CancelJob())
		r.Get("/{id}/events", sseHandler.Events())
	})

	r.Route("/scripts", func(r chi.Router) {
		r.Get("/", handlers.ListScripts())
		r.Get("/{id}", handlers.GetScript())
	})

	return &Server{router: r}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
