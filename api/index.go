// Package handler is the serverless entry point. All routes live in one
// chi router so a single function deployment serves the whole API.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/handlers"
	"workflow-collab-backend/pkg/logger"
	customMiddleware "workflow-collab-backend/pkg/middleware"
	"workflow-collab-backend/pkg/storage"
	"workflow-collab-backend/pkg/utils"
	"workflow-collab-backend/pkg/workflow"
)

// Handler is the function entry point. Config, logger and the database
// pool are cached across warm invocations.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	log := logger.Global(cfg.IsDevelopment())

	db, err := database.GetDatabase(database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Database unavailable")
		return
	}

	store := storage.NewSupabaseStore(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket)
	sink := audit.NewLogSink(log)
	evaluator := access.NewEvaluator(db, sink)
	svc := workflow.NewService(db, store, evaluator, sink, log,
		workflow.WithInvitationTTL(cfg.InvitationTTL))

	router := chi.NewRouter()
	setupMiddleware(router, cfg, log)
	setupRoutes(router, cfg, db, svc, evaluator, log)

	router.ServeHTTP(w, r)
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, log *logger.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(log))
	router.Use(customMiddleware.Recovery(log))
	router.Use(customMiddleware.CORS(cfg))

	router.Use(middleware.Compress(5))
	router.Use(customMiddleware.MaxBodySize(1 << 20))
	router.Use(customMiddleware.RateLimit(cfg.RateLimitPerMinute))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, svc *workflow.Service, evaluator *access.Evaluator, log *logger.Logger) {
	healthHandler := handlers.NewHealthHandler(cfg, db)
	workflowsHandler := handlers.NewWorkflowsHandler(cfg, svc)
	messagesHandler := handlers.NewMessagesHandler(cfg, svc)
	invitationsHandler := handlers.NewInvitationsHandler(cfg, svc)
	streamHandler := handlers.NewStreamHandler(cfg, db, evaluator, log)

	router.Get("/", healthHandler.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))

			r.Route("/workflows", func(r chi.Router) {
				// request timeout applies to everything except the stream
				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(25 * time.Second))
					r.Use(customMiddleware.ContentTypeJSON)

					r.Get("/", workflowsHandler.ListWorkflows)
					r.Post("/", workflowsHandler.CreateWorkflow)
					r.Post("/bulk-delete", workflowsHandler.BulkDeleteWorkflows)

					r.Post("/messages/mark-read", messagesHandler.MarkRead)
					r.Post("/messages/bulk-hard-delete", messagesHandler.BulkHardDelete)
					r.Delete("/messages/{id}", messagesHandler.DeleteMessage)

					r.Get("/{id}", workflowsHandler.GetWorkflow)
					r.Put("/{id}", workflowsHandler.TransitionWorkflow)
					r.Delete("/{id}", workflowsHandler.DeleteWorkflow)
					r.Post("/{id}/messages", messagesHandler.SendMessage)
					r.Post("/{id}/invitations", invitationsHandler.Invite)
				})

				// the path segment carries the tenant id; chi requires the
				// same param name as the sibling /{id} routes
				r.Get("/{id}/stream", streamHandler.Stream)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Use(middleware.Timeout(25 * time.Second))
				r.Use(customMiddleware.ContentTypeJSON)

				r.Get("/my", invitationsHandler.ListMy)
				r.Post("/{id}/resolve", invitationsHandler.Resolve)
				r.Post("/{id}/resend", invitationsHandler.Resend)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
