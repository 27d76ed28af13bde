package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"genboard/internal/http/handlers"
	"genboard/internal/infra"
	"genboard/internal/middleware"
)

// NewRouter assembles the public API surface. The admin subtree sits behind
// the role guard on top of the shared JWT check.
func NewRouter(app *handlers.App, cache infra.Cache) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(nil),
		middleware.RateLimit(cache, app.Config.RateLimitPerMin, time.Minute, app.Logger),
	)

	r.Get("/v1/healthz", app.Health)

	if app.Store != nil {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Store.BasePath())))
		r.Get("/static/*", fs.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))

		r.Get("/v1/models", app.ListModels)

		r.Route("/v1/generations", func(r chi.Router) {
			r.Post("/", app.CreateGeneration)
			r.Get("/{id}", app.GetGeneration)
			r.Post("/{id}/dismiss", app.DismissGeneration)
			r.Get("/{id}/outputs.zip", app.DownloadOutputsArchive)
		})

		r.Route("/v1/outputs", func(r chi.Router) {
			r.Get("/{id}", app.GetOutput)
			r.Patch("/{id}", app.PatchOutputFlags)
			r.Post("/{id}/events", app.CreateOutputEvent)
		})

		r.Get("/v1/debug/stuck-generations", app.ListOwnStuckGenerations)
		r.Get("/v1/debug/generation/{id}", app.GenerationDebugDetail)

		r.Get("/v1/analytics/global/events", app.EngagementSummary)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/v1/cleanup-stuck-generations", app.CleanupStuckGenerations)
			r.Get("/v1/analytics/spending", app.SpendingReport)
		})
	})

	return r
}
