package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beije/packet-storefront/api/controllers"
	"github.com/beije/packet-storefront/api/middleware"
	"github.com/beije/packet-storefront/internal/auth"
	"github.com/beije/packet-storefront/internal/selection"
	"github.com/beije/packet-storefront/pkg/config"
	"github.com/beije/packet-storefront/pkg/logger"
)

type rateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Dependencies are the services the HTTP surface is built from. RateStore and
// Gatherer are optional; a nil RateStore disables login throttling.
type Dependencies struct {
	Readiness  map[string]controllers.Pinger
	Gatherer   prometheus.Gatherer
	RateStore  rateLimitStore
	Auth       auth.Service
	Workspaces controllers.Workspaces
	Catalog    controllers.CatalogSource
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.App.CORSOrigins, cfg.Session.Header),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	stepPolicy := selection.NewStepPolicy(cfg.Packets.IncrementStep)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(middleware.SessionOptions{
			Header:       cfg.Session.Header,
			CookieName:   cfg.Session.CookieName,
			CookieSecure: cfg.Session.CookieSecure,
		}, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, deps.RateStore, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
			r.Get("/profile", controllers.AuthProfile(deps.Auth, logg))
		})

		r.Route("/packets", func(r chi.Router) {
			r.Get("/", controllers.PacketsActivate(deps.Workspaces, deps.Catalog, deps.Auth, logg))

			r.Route("/selection", func(r chi.Router) {
				r.Get("/", controllers.SelectionGet(deps.Workspaces, logg))
				r.Delete("/", controllers.SelectionClear(deps.Workspaces, logg))
				r.Put("/{subProductID}", controllers.SelectionPut(deps.Workspaces, logg))
				r.Delete("/{subProductID}", controllers.SelectionDelete(deps.Workspaces, logg))
				r.Post("/{subProductID}/increment", controllers.SelectionIncrement(deps.Workspaces, stepPolicy, logg))
				r.Post("/{subProductID}/decrement", controllers.SelectionDecrement(deps.Workspaces, stepPolicy, logg))
			})

			r.Post("/checkout", controllers.CheckoutSubmit(deps.Workspaces, logg))
			r.Get("/checkout", controllers.CheckoutStatus(deps.Workspaces, logg))
		})
	})

	return r
}
