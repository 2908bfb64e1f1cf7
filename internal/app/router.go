package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/conceptforge/conceptforge/internal/auth"
	"github.com/conceptforge/conceptforge/internal/observability"
	"github.com/conceptforge/conceptforge/internal/server"
)

// RouterParams groups dependencies for building the HTTP routers.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	AuthHandler   *auth.Handler
	ServerHandler *server.Handler
	Sessions      auth.TokenStore
	Metrics       *observability.Metrics
}

// NewRouter builds the primary router: login plus the authenticated read
// and versioning surface.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Login is the only unauthenticated endpoint; rate-limit it by IP.
	r.Group(func(r chi.Router) {
		limit := 10
		window := params.Config.LoginRateSpan
		if params.Config.LoginRateCap > 0 {
			limit = params.Config.LoginRateCap
		}
		r.Use(httprate.Limit(limit, window, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.AuthHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(params.Sessions))
		params.ServerHandler.MountRoutes(r)
	})

	return r
}

// NewAdminRouter builds the admin router served on the secondary port: the
// mutating metaproject surface plus metrics.
func NewAdminRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(params.Sessions))
		params.ServerHandler.MountAdminRoutes(r)
	})

	return r
}
