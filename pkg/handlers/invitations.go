package handlers

import (
	"net/http"
	"time"

	chiRoute "github.com/go-chi/chi/v5"

	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/middleware"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/utils"
	"workflow-collab-backend/pkg/workflow"
)

// InvitationsHandler serves invitation issuance and resolution routes.
type InvitationsHandler struct {
	config *config.Config
	svc    *workflow.Service
}

func NewInvitationsHandler(cfg *config.Config, svc *workflow.Service) *InvitationsHandler {
	return &InvitationsHandler{config: cfg, svc: svc}
}

type inviteRequest struct {
	InviteeID string `json:"invitee_id"`
	// TTLHours overrides the default invitation lifetime. Zero with the
	// field present means the invitation is born expired, which some
	// clients use to pre-create slots.
	TTLHours *int `json:"ttl_hours,omitempty"`
}

// Invite handles POST /api/workflows/{id}/invitations.
func (h *InvitationsHandler) Invite(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	workflowID := chiRoute.URLParam(r, "id")

	var req inviteRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	var ttl *time.Duration
	if req.TTLHours != nil {
		d := time.Duration(*req.TTLHours) * time.Hour
		ttl = &d
	}

	inv, err := h.svc.Invite(r.Context(), p, workflowID, req.InviteeID, ttl)
	if err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	utils.WriteCreatedResponse(w, inv)
}

type resolveRequest struct {
	Decision models.InvitationDecision `json:"decision"`
}

// Resolve handles POST /api/invitations/{id}/resolve.
func (h *InvitationsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	invitationID := chiRoute.URLParam(r, "id")

	var req resolveRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	inv, err := h.svc.Resolve(r.Context(), p, invitationID, req.Decision)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, inv)
}

// Resend handles POST /api/invitations/{id}/resend: extends a pending
// invitation's expiry by the configured lifetime.
func (h *InvitationsHandler) Resend(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	invitationID := chiRoute.URLParam(r, "id")

	inv, err := h.svc.Resend(r.Context(), p, invitationID)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, inv)
}

// ListMy handles GET /api/invitations/my.
func (h *InvitationsHandler) ListMy(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	list, err := h.svc.ListForUser(r.Context(), p)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"invitations": list,
		"total":       len(list),
	})
}
