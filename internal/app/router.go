package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/formgate/formgate/internal/auth"
	"github.com/formgate/formgate/internal/forms"
	"github.com/formgate/formgate/internal/observability"
	"github.com/formgate/formgate/internal/rbac"
	"github.com/formgate/formgate/internal/shared"
	"github.com/formgate/formgate/internal/users"
	"github.com/formgate/formgate/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *auth.Handler
	RBACHandler    *rbac.Handler
	UsersHandler   *users.Handler
	FormsHandler   *forms.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with formgate defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Credential endpoints get a tighter per-IP limit than the global one.
	r.Group(func(r chi.Router) {
		limit := 10
		period := time.Minute
		if params.Config != nil && params.Config.LoginRateLimit > 0 {
			limit = params.Config.LoginRateLimit
		}
		if params.Config != nil && params.Config.RatePeriod > 0 {
			period = params.Config.RatePeriod
		}
		r.Use(httprate.Limit(limit, period, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.AuthHandler.MountRoutes(r)
	})

	params.RBACHandler.MountRoutes(r)
	params.UsersHandler.MountRoutes(r)
	params.FormsHandler.MountRoutes(r)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
