package workflow

import (
	"context"
	"strings"
	"time"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/utils"
)

// Invite creates a pending invitation for the invitee. ttl nil means the
// configured default (7 days); a zero ttl produces an invitation that is
// already expired, which callers use to revoke-by-timeout in tests and
// tooling.
func (s *Service) Invite(ctx context.Context, p *models.Principal, workflowID, inviteeID string, ttl *time.Duration) (*models.WorkflowInvitation, error) {
	w, err := s.db.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	// Participant or admin; same tiers as every workflow mutation.
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeManage); err != nil {
		return nil, err
	}

	inviteeID = strings.TrimSpace(inviteeID)
	if inviteeID == "" {
		return nil, apperr.Validation("invitee id is required")
	}
	if ttl != nil && *ttl < 0 {
		return nil, apperr.Validation("ttl must not be negative")
	}
	already, err := s.db.IsParticipant(w.ID, inviteeID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, apperr.Validation("invitee is already a participant")
	}
	// Friendly pre-check; the unique index in CreateInvitation is the
	// real guard against concurrent inviters.
	pending, err := s.db.FindPendingInvitation(w.ID, inviteeID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, apperr.New(apperr.KindDuplicateInvitation, "a pending invitation for this invitee already exists")
	}

	inv, err := s.issueInvitation(w, p.UserID, inviteeID, ttl)
	if err != nil {
		return nil, err
	}

	s.audit.Record(audit.Event{
		Action:   "invitation.create",
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   inv.ID,
		Metadata: map[string]interface{}{"workflow_id": w.ID, "invitee_id": inviteeID},
	})
	return inv, nil
}

func (s *Service) issueInvitation(w *models.Workflow, inviterID, inviteeID string, ttl *time.Duration) (*models.WorkflowInvitation, error) {
	lifetime := s.invitationTTL
	if ttl != nil {
		lifetime = *ttl
	}
	token, err := utils.GenerateURLToken(24)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to generate invitation token")
	}
	inv := &models.WorkflowInvitation{
		WorkflowID: w.ID,
		InviterID:  inviterID,
		InviteeID:  inviteeID,
		Role:       models.ParticipantRecipient,
		Token:      token,
		Status:     models.InvitationPending,
		ExpiresAt:  time.Now().Add(lifetime),
	}
	if err := s.db.CreateInvitation(inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Resolve accepts or rejects an invitation. Only the invitee may resolve,
// and an invitation leaves pending exactly once: the guarded write in the
// database decides concurrent resolvers, and the loser observes
// AlreadyResolved. Resolving past the deadline marks the invitation
// expired as a side effect and fails with Expired.
func (s *Service) Resolve(ctx context.Context, p *models.Principal, invitationID string, decision models.InvitationDecision) (*models.WorkflowInvitation, error) {
	if p == nil || p.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	inv, err := s.db.GetInvitation(invitationID)
	if err != nil {
		return nil, err
	}
	if inv.InviteeID != p.UserID {
		return nil, apperr.Forbidden("only the invitee may resolve an invitation")
	}
	if inv.Status != models.InvitationPending {
		return nil, apperr.New(apperr.KindAlreadyResolved, "invitation already %s", inv.Status)
	}
	if inv.Expired(time.Now()) {
		// Side effect: persist the expiry. Losing this race to another
		// expirer is fine, the outcome is identical.
		if _, err := s.db.UpdateInvitationStatus(inv.ID, models.InvitationExpired); err != nil {
			return nil, err
		}
		return nil, apperr.New(apperr.KindExpired, "invitation expired")
	}

	w, err := s.db.GetWorkflow(inv.WorkflowID)
	if err != nil {
		return nil, err
	}

	switch decision {
	case models.DecisionAccept:
		participant := &models.WorkflowParticipant{
			WorkflowID: inv.WorkflowID,
			UserID:     inv.InviteeID,
			Role:       inv.Role,
		}
		ok, err := s.db.AcceptInvitation(inv.ID, participant)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.New(apperr.KindAlreadyResolved, "invitation was resolved concurrently")
		}
	case models.DecisionReject:
		ok, err := s.db.UpdateInvitationStatus(inv.ID, models.InvitationRejected)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.New(apperr.KindAlreadyResolved, "invitation was resolved concurrently")
		}
	default:
		return nil, apperr.Validation("decision must be accept or reject")
	}

	s.audit.Record(audit.Event{
		Action:   "invitation." + string(decision),
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   inv.ID,
		Before:   string(models.InvitationPending),
		After:    string(decisionStatus(decision)),
		Metadata: map[string]interface{}{"workflow_id": inv.WorkflowID},
	})
	return s.db.GetInvitation(inv.ID)
}

func decisionStatus(d models.InvitationDecision) models.InvitationStatus {
	if d == models.DecisionAccept {
		return models.InvitationAccepted
	}
	return models.InvitationRejected
}

// Resend extends a pending, unexpired invitation by the configured
// window. The original inviter or any current participant (or an admin)
// may resend.
func (s *Service) Resend(ctx context.Context, p *models.Principal, invitationID string) (*models.WorkflowInvitation, error) {
	if p == nil || p.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	inv, err := s.db.GetInvitation(invitationID)
	if err != nil {
		return nil, err
	}
	w, err := s.db.GetWorkflow(inv.WorkflowID)
	if err != nil {
		return nil, err
	}
	if inv.InviterID != p.UserID {
		if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeManage); err != nil {
			return nil, err
		}
	}
	if inv.Status != models.InvitationPending {
		return nil, apperr.InvalidStateTransition("cannot resend a %s invitation", inv.Status)
	}
	if inv.Expired(time.Now()) {
		return nil, apperr.InvalidStateTransition("cannot resend an expired invitation")
	}

	ok, err := s.db.ExtendInvitation(inv.ID, time.Now().Add(s.invitationTTL))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindAlreadyResolved, "invitation was resolved concurrently")
	}

	s.audit.Record(audit.Event{
		Action:   "invitation.resend",
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   inv.ID,
		Metadata: map[string]interface{}{"workflow_id": inv.WorkflowID},
	})
	return s.db.GetInvitation(inv.ID)
}

// ListForUser returns the caller's invitations, newest first.
func (s *Service) ListForUser(ctx context.Context, p *models.Principal) ([]models.WorkflowInvitation, error) {
	if p == nil || p.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	return s.db.ListInvitationsForUser(p.UserID)
}
