// Package rest assembles the HTTP surface: router, middleware stack and
// endpoint wiring over the triage service.
package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"channelflow-backend/internal/config"
	"channelflow-backend/internal/interfaces/http/rest/handlers"
	"channelflow-backend/internal/interfaces/http/rest/middleware"
	"channelflow-backend/internal/observability"
	"channelflow-backend/internal/service/triage"
	"channelflow-backend/pkg/api"
)

const requestTimeout = 60 * time.Second

// StorePinger reports whether the run store is reachable.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// LLMStatus reports whether the language model provider is usable.
type LLMStatus interface {
	IsAvailable() bool
}

// Router builds the HTTP handler tree for the service.
type Router struct {
	svc     triage.Service
	store   StorePinger
	llm     LLMStatus
	cfg     *config.Config
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewRouter creates the router. store, llm and metrics may be nil; the
// readiness checks and the metrics endpoint degrade accordingly.
func NewRouter(
	svc triage.Service,
	store StorePinger,
	llm LLMStatus,
	cfg *config.Config,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		svc:     svc,
		store:   store,
		llm:     llm,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(chimiddleware.Timeout(requestTimeout))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Get("/api/docs", api.SwaggerUIHandler())
	router.Get("/api/swagger.yaml", api.SwaggerHandler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(rt.cfg.APIKey))

		triageHandler := handlers.NewTriageHandler(rt.svc, rt.logger)
		r.Post("/messages", triageHandler.ProcessMessage)
		r.Route("/channels/{channelID}/items", func(r chi.Router) {
			r.Get("/", triageHandler.ListItems)
			r.Patch("/{itemID}", triageHandler.UpdateItem)
		})

		flowHandler := handlers.NewFlowHandler(rt.svc, rt.logger)
		r.Route("/flows", func(r chi.Router) {
			r.Get("/", flowHandler.ListFlows)
			r.Post("/validate", flowHandler.ValidateFlow)
			r.Get("/{flowID}", flowHandler.GetFlow)
			r.Post("/{flowID}/run", flowHandler.RunFlow)
			r.Get("/{flowID}/runs", flowHandler.ListRuns)
			r.Get("/{flowID}/runs/{runID}", flowHandler.GetRun)
		})

		knowledgeHandler := handlers.NewKnowledgeHandler(rt.svc, rt.logger)
		r.Post("/knowledge/query", knowledgeHandler.Query)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck pings the run store and reports provider availability. Any
// failing check flips the status code so orchestrators hold traffic.
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := http.StatusOK

	if rt.store != nil {
		if err := rt.store.Ping(r.Context()); err != nil {
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	if rt.llm != nil {
		if rt.llm.IsAvailable() {
			checks["llm"] = "ok"
		} else {
			checks["llm"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "degraded"
	}
	api.Success(w, status, api.ReadyResponse{Status: state, Checks: checks})
}
