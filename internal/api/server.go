package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/buildcamp/progression-engine/internal/config"
	"github.com/buildcamp/progression-engine/internal/progression"
	"github.com/buildcamp/progression-engine/internal/stats"
	"github.com/buildcamp/progression-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	engine         *progression.Engine
	repo           storage.Repository
	reporter       *stats.Reporter
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server. reporter may be nil, in which
// case the stats endpoint reports unavailable.
func NewServer(
	cfg config.ServerConfig,
	engine *progression.Engine,
	repo storage.Repository,
	reporter *stats.Reporter,
) *Server {
	s := &Server{
		config:         cfg,
		engine:         engine,
		repo:           repo,
		reporter:       reporter,
		authMiddleware: NewAuthMiddleware(repo),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Projects and stage progression
		r.Route("/projects", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("projects:write")).Post("/", s.handleCreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("projects:read")).Get("/", s.handleGetProject)
				r.With(s.authMiddleware.RequirePermission("projects:write")).Post("/members", s.handleAddMember)
				r.With(s.authMiddleware.RequirePermission("projects:read")).Get("/advancement", s.handleCheckAdvancement)
				r.With(s.authMiddleware.RequirePermission("projects:write")).Post("/advance", s.handleAdvance)
				r.With(s.authMiddleware.RequirePermission("projects:admin")).Put("/stage", s.handleSetStage)
				r.With(s.authMiddleware.RequirePermission("projects:read")).Get("/transitions", s.handleListTransitions)
			})
		})

		// Quests and assignments
		r.Route("/quests", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("quests:write")).Post("/", s.handleCreateQuest)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("quests:read")).Get("/", s.handleGetQuest)
				r.With(s.authMiddleware.RequirePermission("quests:write")).Post("/assign", s.handleAssignQuest)

				r.Route("/assignments/{ownerId}", func(r chi.Router) {
					r.With(s.authMiddleware.RequirePermission("quests:read")).Get("/", s.handleGetAssignment)
					r.With(s.authMiddleware.RequirePermission("quests:write")).Put("/status", s.handleUpdateAssignmentStatus)
					r.With(s.authMiddleware.RequirePermission("quests:read")).Get("/history", s.handleAssignmentHistory)
				})
			})
		})

		// Users: tracks, weekly assignment, recommendations
		r.Route("/users/{id}", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("users:write")).Put("/track", s.handleSetTrack)
			r.With(s.authMiddleware.RequirePermission("users:read")).Get("/settings", s.handleGetUserSettings)
			r.With(s.authMiddleware.RequirePermission("quests:write")).Post("/assignments/weekly", s.handleWeeklyAssign)
			r.With(s.authMiddleware.RequirePermission("mentors:read")).Get("/mentors", s.handleRecommendMentors)
		})

		// Mentor profiles
		r.Route("/mentors", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("mentors:read")).Get("/", s.handleListMentors)
			r.With(s.authMiddleware.RequirePermission("mentors:write")).Put("/{id}", s.handleUpsertMentor)
			r.With(s.authMiddleware.RequirePermission("mentors:read")).Get("/{id}", s.handleGetMentor)
		})

		// Mentorships and sessions
		r.Route("/mentorships", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("mentorships:write")).Post("/", s.handleRequestMentorship)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("mentorships:read")).Get("/", s.handleGetMentorship)
				r.With(s.authMiddleware.RequirePermission("mentorships:write")).Put("/status", s.handleUpdateMentorshipStatus)
				r.With(s.authMiddleware.RequirePermission("mentorships:write")).Post("/sessions", s.handleScheduleSession)
			})
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("mentorships:read")).Get("/", s.handleGetSession)
			r.With(s.authMiddleware.RequirePermission("mentorships:write")).Put("/rating", s.handleRateSession)
		})

		// Dashboard aggregates
		r.With(s.authMiddleware.RequirePermission("stats:read")).Get("/stats", s.handleStats)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
