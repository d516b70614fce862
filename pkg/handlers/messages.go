package handlers

import (
	"net/http"

	chiRoute "github.com/go-chi/chi/v5"

	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/middleware"
	"workflow-collab-backend/pkg/utils"
	"workflow-collab-backend/pkg/workflow"
)

// MessagesHandler serves the workflow messaging routes.
type MessagesHandler struct {
	config *config.Config
	svc    *workflow.Service
}

func NewMessagesHandler(cfg *config.Config, svc *workflow.Service) *MessagesHandler {
	return &MessagesHandler{config: cfg, svc: svc}
}

// SendMessage handles POST /api/workflows/{id}/messages.
func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workflowID := chiRoute.URLParam(r, "id")

	var req workflow.SendRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	msg, err := h.svc.Send(r.Context(), p, workflowID, &req)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteCreatedResponse(w, msg)
}

type markReadRequest struct {
	WorkflowID string   `json:"workflow_id"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

// MarkRead handles POST /api/workflows/messages/mark-read. An empty
// message_ids list marks every unread message in the workflow.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req markReadRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.WorkflowID == "" {
		utils.WriteBadRequestResponse(w, "workflow_id required")
		return
	}

	results, err := h.svc.MarkRead(r.Context(), p, req.WorkflowID, req.MessageIDs)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"results": results,
	})
}

// DeleteMessage handles DELETE /api/workflows/messages/{id}. Senders
// retract the message for everyone, recipients hide their own copy.
func (h *MessagesHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	messageID := chiRoute.URLParam(r, "id")

	if err := h.svc.SoftDelete(r.Context(), p, messageID); err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"deleted": true,
	})
}

// BulkHardDelete handles POST /api/workflows/messages/bulk-hard-delete.
func (h *MessagesHandler) BulkHardDelete(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req workflow.BulkHardDeleteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	ledger, err := h.svc.BulkHardDelete(r.Context(), p, &req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}

	utils.WriteMultiStatusResponse(w, map[string]interface{}{
		"results": ledger,
	})
}
