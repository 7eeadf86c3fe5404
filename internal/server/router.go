package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tramitalabs/convoca/internal/api"
	"github.com/tramitalabs/convoca/internal/api/handlers"
	"github.com/tramitalabs/convoca/internal/api/middleware"
	"github.com/tramitalabs/convoca/internal/metrics"
)

// Pinger reports store reachability for the health endpoint. A pgx pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	ChatHandler   *handlers.ChatHandler
	SearchHandler *handlers.SearchHandler
	GrantHandler  *handlers.GrantHandler
	Pinger        Pinger
	Logger        *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Pinger != nil {
			if err := cfg.Pinger.Ping(r.Context()); err != nil {
				api.Error(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat", cfg.ChatHandler.Chat)
	r.Post("/search", cfg.SearchHandler.Search)
	r.Get("/grants/{id}", cfg.GrantHandler.Get)

	return r
}
