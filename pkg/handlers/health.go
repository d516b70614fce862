package handlers

import (
	"net/http"
	"time"

	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/utils"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewHealthHandler(cfg *config.Config, db database.DatabaseInterface) *HealthHandler {
	return &HealthHandler{config: cfg, db: db}
}

// Health handles GET /.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := h.db.HealthCheck(); err != nil {
		dbStatus = "unavailable"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	utils.WriteJSONResponse(w, status, map[string]interface{}{
		"service":     "workflow-collab-backend",
		"environment": h.config.Environment,
		"database":    dbStatus,
		"time":        time.Now().Format(time.RFC3339),
	})
}
