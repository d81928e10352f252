package web

import (
	"net/http"
	"time"

	"personal-connect/internal/logger"
	"personal-connect/internal/models/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Routes builds the /api/v1 router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	})
	r.Use(corsMiddleware.Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", h.Catalog)

		r.Group(func(r chi.Router) {
			r.Use(h.limiter.middleware)
			r.Post("/auth/login", h.Login)
			r.Post("/auth/signup", h.SignUp)
			r.Post("/auth/reset", h.ResetPassword)
		})

		// WebSockets carry the token as ?token= since browsers cannot set headers
		r.With(h.authenticate).Get("/ws", h.Stream)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/auth/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Get("/state", h.State)

			r.Get("/profile", h.Profile)
			r.Put("/profile", h.UpdateProfile)
			r.Put("/aluno/profile", h.UpdateOwnProfile)

			r.Post("/alunos", h.CreateStudent)
			r.Post("/alunos/{alunoId}/select", h.SelectStudent)
			r.Post("/alunos/{alunoId}/reconcile", h.Reconcile)

			r.Post("/rotinas", h.CreateRoutine)
			r.Post("/rotinas/{rotinaId}/select", h.SelectRoutine)

			r.Post("/treinos", h.SaveExercise)
			r.Get("/treinos/grupos", h.GroupedWorkouts)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func NewServer(cfg *config.Config, h *Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
