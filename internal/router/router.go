// Package router sets up all HTTP routes and middleware chains for the
// Verdant AI service. Health and service info live at the root; every
// AI-backed operation lives under /api.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"verdant/internal/handlers"
	"verdant/internal/middleware"
)

// Options configures the middleware stack.
type Options struct {
	// CORSOrigin is a comma-separated list of allowed origins, or "*".
	CORSOrigin string

	// Limiter throttles /api per client. Nil disables rate limiting.
	Limiter middleware.Limiter
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(api *handlers.API, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(opts.CORSOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", api.Health)
	r.Get("/", api.Root)

	r.Route("/api", func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(middleware.RateLimit(opts.Limiter))
		}

		// Embeddings, raw chat and vector search
		r.Post("/embeddings/generate", api.GenerateEmbedding)
		r.Post("/embeddings/customer", api.CustomerEmbedding)
		r.Post("/chat/openai", api.ChatOpenAI)
		r.Post("/chat/claude", api.ChatClaude)
		r.Get("/search/semantic", api.SemanticSearch)

		r.Route("/leads", func(r chi.Router) {
			r.Post("/score", api.ScoreLead)
			r.Post("/batch-score", api.BatchScoreLeads)
			r.Get("/similar/{leadID}", api.SimilarLeads)
			r.Post("/enrich/{leadID}", api.EnrichLead)
		})

		r.Route("/properties", func(r chi.Router) {
			r.Post("/analyze", api.AnalyzeProperty)
			r.Post("/estimate-lawn-area", api.EstimateLawnArea)
		})

		r.Route("/content", func(r chi.Router) {
			r.Post("/generate-tip", api.GenerateTip)
			r.Post("/generate-email", api.GenerateEmail)
			r.Post("/generate-marketing-copy", api.GenerateMarketingCopy)
			r.Post("/generate-social-post", api.GenerateSocialPost)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Post("/predict-churn", api.PredictChurn)
			r.Post("/forecast-demand", api.ForecastDemand)
			r.Get("/neighborhood-insights/{neighborhoodID}", api.NeighborhoodInsights)
		})

		r.Route("/ads", func(r chi.Router) {
			r.Post("/generate", api.GenerateAds)
			r.Post("/generate-variants", api.GenerateVariants)
			r.Post("/optimize-targeting", api.OptimizeTargeting)
		})

		r.Route("/garden", func(r chi.Router) {
			r.Post("/generate-personalized-plan", api.GeneratePersonalizedPlan)
			r.Get("/plans/{planID}", api.GetGardenPlan)
			r.Get("/my-plans", api.MyGardenPlans)
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.Post("/watering-recommendation", api.WateringRecommendation)
			r.Post("/lawn-schedule/generate", api.GenerateLawnSchedule)
			r.Get("/weather/rainfall-summary", api.RainfallSummary)
			r.Post("/property/assess", api.AssessProperty)
		})
	})

	return r
}

// writeDetail writes the API's {"detail": msg} error body.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"detail":"` + msg + `"}`))
}
