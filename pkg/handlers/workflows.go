package handlers

import (
	"fmt"
	"net/http"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"

	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/middleware"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/utils"
	"workflow-collab-backend/pkg/workflow"
)

// WorkflowsHandler serves workflow lifecycle routes.
type WorkflowsHandler struct {
	config *config.Config
	svc    *workflow.Service
}

func NewWorkflowsHandler(cfg *config.Config, svc *workflow.Service) *WorkflowsHandler {
	return &WorkflowsHandler{config: cfg, svc: svc}
}

type createWorkflowRequest struct {
	TenantID     string   `json:"tenant_id"`
	Title        string   `json:"title"`
	Participants []string `json:"participants,omitempty"`
}

// CreateWorkflow handles POST /api/workflows. Listed participants are
// invited, not enrolled; each becomes a pending invitation.
func (h *WorkflowsHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req createWorkflowRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	created, invitations, err := h.svc.Create(r.Context(), p, req.TenantID, req.Title, req.Participants)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"workflow":    created,
		"invitations": invitations,
	})
}

type transitionRequest struct {
	Action models.WorkflowAction `json:"action"`
}

// TransitionWorkflow handles PUT /api/workflows/{id}.
func (h *WorkflowsHandler) TransitionWorkflow(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workflowID := chiRoute.URLParam(r, "id")

	var req transitionRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(string(req.Action)) == "" {
		utils.WriteBadRequestResponse(w, "action is required")
		return
	}

	updated, err := h.svc.Transition(r.Context(), p, workflowID, req.Action)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, updated)
}

// GetWorkflow handles GET /api/workflows/{id}.
func (h *WorkflowsHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workflowID := chiRoute.URLParam(r, "id")

	detail, err := h.svc.Get(r.Context(), p, workflowID)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, detail)
}

// ListWorkflows handles GET /api/workflows?tenant_id=.
func (h *WorkflowsHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if strings.TrimSpace(tenantID) == "" {
		utils.WriteBadRequestResponse(w, "tenant_id required")
		return
	}

	list, err := h.svc.ListByTenant(r.Context(), p, tenantID)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	// Weak ETag: workflows:<tenant>:<count>:<maxUpdated>
	var maxUpdated int64
	for _, wf := range list {
		if ts := wf.UpdatedAt.UnixMilli(); ts > maxUpdated {
			maxUpdated = ts
		}
	}
	etag := fmt.Sprintf("W/\"workflows:%s:%d:%d\"", tenantID, len(list), maxUpdated)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"workflows": list,
		"total":     len(list),
	})
}

// DeleteWorkflow handles DELETE /api/workflows/{id}: permanent removal of
// an already-soft-deleted workflow.
func (h *WorkflowsHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workflowID := chiRoute.URLParam(r, "id")

	report, err := h.svc.PermanentlyDelete(r.Context(), p, workflowID)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, report)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDeleteWorkflows handles POST /api/workflows/bulk-delete. The
// response is 207: each workflow succeeds or fails on its own.
func (h *WorkflowsHandler) BulkDeleteWorkflows(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req bulkDeleteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	ledger, err := h.svc.BulkPermanentDelete(r.Context(), p, req.IDs)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}

	utils.WriteMultiStatusResponse(w, map[string]interface{}{
		"results": ledger,
	})
}
