package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/dispatcher"
)

// Server exposes the research job API: submit, poll status, fetch result,
// cancel. Payloads never leak execution context or raw stack traces, only
// the structured error summary stored on the job.
type Server struct {
	disp *dispatcher.Dispatcher
	auth *AuthManager
	log  *zerolog.Logger
	http *http.Server
}

func NewServer(disp *dispatcher.Dispatcher, auth *AuthManager, port int, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	s := &Server{disp: disp, auth: auth, log: &l}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/research", func(r chi.Router) {
		r.Post("/", submitHandler(disp))
		r.Get("/{jobID}", statusHandler(disp))
		r.Get("/{jobID}/result", resultHandler(disp))
		r.Delete("/{jobID}", cancelHandler(disp))
	})

	if auth != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/login", loginHandler(auth))
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware)
				r.Get("/jobs", jobsListHandler(disp))
			})
		})
	}

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
