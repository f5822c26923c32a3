package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tryonserver/internal/http/handlers"
	"tryonserver/internal/middleware"
)

// Options carries the cross-cutting pieces the router wires around handlers.
type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	Limiter         middleware.Limiter
	CountryLookup   middleware.CountryLookup
	AllowedOrigins  []string
}

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Geo("en", opts.CountryLookup),
	)
	if opts.Limiter != nil && opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.Limiter, opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Route("/v1/batches", func(r chi.Router) {
			r.Post("/", app.BatchesCreate)
			r.Get("/{id}", app.BatchGet)
			r.Get("/{id}/archive", app.BatchArchive)
		})

		r.Get("/v1/download", app.Download)

		r.Route("/v1/payouts", func(r chi.Router) {
			r.Post("/", app.PayoutCreate)
			r.Get("/", app.PayoutList)
			r.Post("/{id}/status", app.PayoutTransition)
		})
	})

	return r
}
