// Package api exposes the dosing service over JSON HTTP
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/mrcode/directdose/internal/auth"
	"github.com/mrcode/directdose/internal/metrics"
	"github.com/mrcode/directdose/internal/models"
	"github.com/mrcode/directdose/internal/service"
)

// Server represents the API server
type Server struct {
	settings *models.Settings
	router   chi.Router
	handlers *Handlers
	metrics  *metrics.Metrics
}

// NewServer creates a new API server. m may be nil to disable /metrics.
func NewServer(settings *models.Settings, svc *service.Service, m *metrics.Metrics) *Server {
	s := &Server{
		settings: settings,
		router:   chi.NewRouter(),
		handlers: NewHandlers(svc),
		metrics:  m,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	secret := s.settings.JWTSecret
	h := s.handlers

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
		if s.metrics != nil {
			r.Handle("/metrics", s.metrics.Handler())
		}

		// Anonymous use allowed; a valid token links results to the user
		r.Group(func(r chi.Router) {
			r.Use(auth.Optional(secret))

			r.Get("/nutrition", h.GetNutrition)
			r.Post("/nutrition", h.PostNutrition)
			r.Post("/bolus", h.CalculateBolus)
			r.Get("/bolus/badge.png", h.BolusBadge)
			r.Get("/bolus/badge.ico", h.BolusBadgeICO)

			r.Post("/icr/estimate", h.EstimateICR)

			r.Post("/basal/estimate", h.EstimateBasal)
			r.Post("/basal/adjust", h.AdjustBasal)
			r.Post("/basal/symptoms", h.AnalyzeSymptoms)
		})

		// Signed-in user required
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(secret))

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)

			r.Route("/meals", func(r chi.Router) {
				r.Get("/", h.ListMeals)
				r.Post("/", h.SaveMeal)
				r.Delete("/{id}", h.DeleteMeal)
			})

			r.Route("/icr", func(r chi.Router) {
				r.Get("/", h.GetICR)
				r.Post("/initial", h.StartICR)
				r.Post("/days/{day}", h.RecordICRDay)
				r.Post("/finalize", h.FinalizeICR)
				r.Get("/chart.png", h.ICRChart)
				r.Get("/chart.txt", h.ICRChartText)
			})

			r.Get("/basal/history", h.BasalHistory)
		})
	})
}

// Router returns the chi router
func (s *Server) Router() http.Handler {
	return s.router
}

// requestLogger logs one line per request with zerolog
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}
