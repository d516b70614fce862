package workflow

import (
	"context"
	"strings"
	"time"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/metrics"
	"workflow-collab-backend/pkg/models"

	"go.uber.org/zap"
)

// transitions is the lifecycle table. An action is legal iff an entry
// exists for the current status. Soft delete is reachable from every
// non-deleted status; reactivate only undoes terminate or pause.
var transitions = map[models.WorkflowStatus]map[models.WorkflowAction]models.WorkflowStatus{
	models.WorkflowActive: {
		models.ActionPause:      models.WorkflowPaused,
		models.ActionComplete:   models.WorkflowCompleted,
		models.ActionTerminate:  models.WorkflowTerminated,
		models.ActionSoftDelete: models.WorkflowDeleted,
	},
	models.WorkflowPaused: {
		models.ActionReactivate: models.WorkflowActive,
		models.ActionTerminate:  models.WorkflowTerminated,
		models.ActionSoftDelete: models.WorkflowDeleted,
	},
	models.WorkflowCompleted: {
		models.ActionSoftDelete: models.WorkflowDeleted,
	},
	models.WorkflowTerminated: {
		models.ActionReactivate: models.WorkflowActive,
		models.ActionSoftDelete: models.WorkflowDeleted,
	},
}

// Create starts a new workflow in active status with the initiator as its
// first participant, and issues pending invitations for any initial
// participants. Invitation failures are per-item and do not undo the
// workflow, matching bulk semantics elsewhere.
func (s *Service) Create(ctx context.Context, p *models.Principal, tenantID, title string, initialParticipants []string) (*models.Workflow, []models.WorkflowInvitation, error) {
	if p == nil || p.UserID == "" {
		return nil, nil, apperr.Unauthorized("authentication required")
	}
	if strings.TrimSpace(title) == "" {
		return nil, nil, apperr.Validation("title is required")
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, nil, apperr.Validation("tenant id is required")
	}
	if _, err := s.db.GetTenant(tenantID); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, nil, apperr.Validation("tenant does not exist")
		}
		return nil, nil, err
	}
	_, isMember, err := s.db.GetTenantRole(tenantID, p.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !isMember {
		return nil, nil, apperr.Validation("initiator is not a member of the tenant")
	}

	w := &models.Workflow{
		TenantID:    tenantID,
		InitiatorID: p.UserID,
		Title:       strings.TrimSpace(title),
		Status:      models.WorkflowActive,
	}
	if err := s.db.CreateWorkflow(w); err != nil {
		return nil, nil, err
	}

	var invitations []models.WorkflowInvitation
	for _, invitee := range initialParticipants {
		invitee = strings.TrimSpace(invitee)
		if invitee == "" || invitee == p.UserID {
			continue
		}
		inv, err := s.issueInvitation(w, p.UserID, invitee, nil)
		if err != nil {
			s.log.Warn("initial invitation failed",
				zap.String("workflow_id", w.ID),
				zap.String("invitee_id", invitee),
				zap.Error(err))
			continue
		}
		invitations = append(invitations, *inv)
	}

	s.audit.Record(audit.Event{
		Action:   "workflow.create",
		ActorID:  p.UserID,
		TenantID: tenantID,
		Target:   w.ID,
		After:    string(w.Status),
		Metadata: map[string]interface{}{"invitations": len(invitations)},
	})
	return w, invitations, nil
}

// Transition applies a lifecycle action. The database write is guarded by
// the observed prior status, so of two concurrent actors exactly one
// wins; the loser gets InvalidStateTransition.
func (s *Service) Transition(ctx context.Context, p *models.Principal, workflowID string, action models.WorkflowAction) (*models.Workflow, error) {
	w, err := s.db.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeManage); err != nil {
		return nil, err
	}

	next, ok := transitions[w.Status][action]
	if !ok {
		return nil, apperr.InvalidStateTransition("cannot %s a %s workflow", action, w.Status)
	}

	var completedBy *string
	var completedAt *time.Time
	if action == models.ActionComplete || action == models.ActionTerminate {
		now := time.Now()
		completedBy = &p.UserID
		completedAt = &now
	}

	matched, err := s.db.UpdateWorkflowStatus(w.ID, w.Status, next, completedBy, completedAt)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, apperr.InvalidStateTransition("workflow state changed concurrently")
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues(string(action)).Inc()
	s.audit.Record(audit.Event{
		Action:   "workflow." + string(action),
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   w.ID,
		Before:   string(w.Status),
		After:    string(next),
	})

	return s.db.GetWorkflow(w.ID)
}

// PermanentlyDelete destroys a soft-deleted workflow via the cascading
// deletion pipeline. Reachable only through the deleted status.
func (s *Service) PermanentlyDelete(ctx context.Context, p *models.Principal, workflowID string) (*DeletionReport, error) {
	w, err := s.db.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeManage); err != nil {
		return nil, err
	}
	if w.Status != models.WorkflowDeleted {
		return nil, apperr.PreconditionFailed("workflow must be deleted before permanent deletion (status is %s)", w.Status)
	}
	return s.cascadeDelete(ctx, p, w)
}

// Get returns the workflow with its roster and the messages visible to
// the viewer.
func (s *Service) Get(ctx context.Context, p *models.Principal, workflowID string) (*models.WorkflowDetail, error) {
	w, err := s.db.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeView); err != nil {
		return nil, err
	}
	participants, err := s.db.ListParticipants(w.ID)
	if err != nil {
		return nil, err
	}
	messages, err := s.db.ListMessagesForViewer(w.ID, p.UserID)
	if err != nil {
		return nil, err
	}
	return &models.WorkflowDetail{
		Workflow:     *w,
		Participants: participants,
		Messages:     messages,
	}, nil
}

// ListByTenant returns the tenant's non-deleted workflows.
func (s *Service) ListByTenant(ctx context.Context, p *models.Principal, tenantID string) ([]models.Workflow, error) {
	if err := s.access.CanAccess(p, tenantID, "", access.ScopeList); err != nil {
		return nil, err
	}
	return s.db.ListWorkflowsByTenant(tenantID, false)
}
