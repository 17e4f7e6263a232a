package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	mcpserver "whiteboard/internal/mcp"
	"whiteboard/internal/observability"
	"whiteboard/internal/service"
)

// Deps are the services behind the HTTP surface. MCP and Metrics are
// optional.
type Deps struct {
	Canvas   *service.CanvasService
	Sessions *service.SessionService
	Chat     *service.ChatService
	MCP      *mcpserver.Server
	Metrics  *observability.Collector
	Logger   *zap.Logger
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

// Router serves the REST API, the MCP streamable HTTP endpoint and metrics.
type Router struct {
	canvas   *service.CanvasService
	sessions *service.SessionService
	chat     *service.ChatService
	mcp      *mcpserver.Server
	metrics  *observability.Collector
	log      *zap.Logger
	validate *validator.Validate
	origins  []string
}

func NewRouter(deps Deps) *Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Router{
		canvas:   deps.Canvas,
		sessions: deps.Sessions,
		chat:     deps.Chat,
		mcp:      deps.MCP,
		metrics:  deps.Metrics,
		log:      log.With(zap.String("component", "http")),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		origins:  origins,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.log))
	if rt.metrics != nil {
		router.Use(instrument(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposedHeaders: []string{"X-Request-ID", "Mcp-Session-Id"},
		MaxAge:         300,
	}))

	router.Get("/healthz", rt.healthCheck)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	if rt.mcp != nil {
		router.Handle("/mcp", rt.mcp.HTTPHandler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/elements", func(r chi.Router) {
			r.Get("/", rt.getSnapshot)
			r.Patch("/{elementID}", rt.patchElement)
			r.Delete("/{elementID}", rt.deleteElement)
		})
		r.Post("/edges", rt.createEdge)
		r.Post("/actions", rt.applyActions)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", rt.listTemplates)
			r.Get("/{templateID}", rt.getTemplate)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", rt.openSession)
			r.Get("/", rt.listSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", rt.getSession)
				r.Delete("/", rt.closeSession)
				r.Post("/mode", rt.setMode)
				r.Post("/click", rt.click)
				r.Post("/drop", rt.drop)
				r.Post("/chat", rt.ask)
				r.Post("/assist/{feature}", rt.assist)
				r.Get("/history", rt.history)
				r.Delete("/history", rt.clearHistory)
			})
		})

		if rt.mcp != nil {
			r.Route("/approvals", func(r chi.Router) {
				r.Get("/", rt.listApprovals)
				r.Post("/{approvalID}/approve", rt.decideApproval(true))
				r.Post("/{approvalID}/reject", rt.decideApproval(false))
			})
		}
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"elements": len(rt.canvas.Elements()),
		"sessions": len(rt.sessions.IDs()),
	})
}
