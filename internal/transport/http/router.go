package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surasmart/internal/platform/middleware"
	"surasmart/pkg/platform/middleware/device"
)

// RouterDeps collects everything the router needs.
type RouterDeps struct {
	Handler   *Handler
	Validator middleware.JWTValidator
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
	Health    func() error
}

// NewRouter builds the chi router with the full middleware chain. Everything
// under /v1 requires a valid bearer token; health and metrics do not.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(device.Capture)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		r.Post("/search", deps.Handler.search)
		r.Post("/sessions/{sessionID}/close", deps.Handler.closeSession)

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", deps.Handler.createCase)
			r.Get("/{caseID}", deps.Handler.getCase)
			r.Post("/{caseID}/records", deps.Handler.ingestRecord)
			r.Post("/{caseID}/transitions", deps.Handler.transitionCase)
			r.Post("/{caseID}/sign", deps.Handler.signCase)
			r.Post("/{caseID}/purge", deps.Handler.purgeCase)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Post("/{matchID}/verify", deps.Handler.verifyMatch)
			r.Post("/{matchID}/reject", deps.Handler.rejectMatch)
		})
	})

	return r
}
