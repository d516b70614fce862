package workflow

import (
	"context"
	"strings"
	"time"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/metrics"
	"workflow-collab-backend/pkg/models"
)

// SendRequest is the payload for sending a message into a workflow.
type SendRequest struct {
	Content     string                     `json:"content"`
	Type        models.MessageType         `json:"type,omitempty"`
	Attachments []models.MessageAttachment `json:"attachments,omitempty"`
	Links       []models.MessageLink       `json:"links,omitempty"`
}

// Send appends a message to the workflow thread. The sender must be a
// current participant and the workflow must be active; message, children
// and the unread recipient rows for every other participant are persisted
// in one transaction.
func (s *Service) Send(ctx context.Context, p *models.Principal, workflowID string, req *SendRequest) (*models.WorkflowMessage, error) {
	w, err := s.db.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeSendMessage); err != nil {
		return nil, err
	}
	if w.Status != models.WorkflowActive {
		return nil, apperr.Forbidden("workflow is %s, messages can only be sent while active", w.Status)
	}

	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageText
	}
	switch msgType {
	case models.MessageText, models.MessageTypeAttachment, models.MessageSystem:
	default:
		return nil, apperr.Validation("unknown message type %q", msgType)
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Attachments) == 0 && len(req.Links) == 0 {
		return nil, apperr.Validation("message must have content, attachments or links")
	}
	for _, a := range req.Attachments {
		if strings.TrimSpace(a.StorageKey) == "" {
			return nil, apperr.Validation("attachment storage key is required")
		}
	}
	for _, l := range req.Links {
		if strings.TrimSpace(l.URL) == "" {
			return nil, apperr.Validation("link url is required")
		}
	}

	participants, err := s.db.ListParticipants(w.ID)
	if err != nil {
		return nil, err
	}
	var recipientIDs []string
	for _, part := range participants {
		if part.UserID != p.UserID {
			recipientIDs = append(recipientIDs, part.UserID)
		}
	}

	msg := &models.WorkflowMessage{
		WorkflowID: w.ID,
		SenderID:   p.UserID,
		Content:    req.Content,
		Type:       msgType,
	}
	if err := s.db.CreateMessage(msg, req.Attachments, req.Links, recipientIDs); err != nil {
		return nil, err
	}

	s.audit.Record(audit.Event{
		Action:   "message.send",
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   msg.ID,
		Metadata: map[string]interface{}{
			"workflow_id": w.ID,
			"type":        string(msgType),
			"recipients":  len(recipientIDs),
		},
	})
	return msg, nil
}

// ReadResult reports the outcome of marking one message read.
type ReadResult struct {
	MessageID string     `json:"message_id"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	// AlreadyRead is true when the call was a no-op; ReadAt then carries
	// the original timestamp, which never regresses.
	AlreadyRead bool `json:"already_read,omitempty"`
}

// MarkRead marks messages read for the caller. With explicit ids it marks
// those messages; otherwise it marks every unread, non-self-authored
// message in the workflow. Re-marking an already-read message succeeds
// without mutation.
func (s *Service) MarkRead(ctx context.Context, p *models.Principal, workflowID string, messageIDs []string) ([]ReadResult, error) {
	w, err := s.db.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeView); err != nil {
		return nil, err
	}
	now := time.Now()

	if len(messageIDs) == 0 {
		n, err := s.db.MarkAllRead(w.ID, p.UserID, now)
		if err != nil {
			return nil, err
		}
		s.audit.Record(audit.Event{
			Action:   "message.mark_read",
			ActorID:  p.UserID,
			TenantID: w.TenantID,
			Target:   w.ID,
			Metadata: map[string]interface{}{"marked": n},
		})
		return []ReadResult{{MessageID: "", ReadAt: &now}}, nil
	}

	var results []ReadResult
	for _, id := range messageIDs {
		msg, err := s.db.GetMessage(id)
		if err != nil {
			return nil, err
		}
		if msg.WorkflowID != w.ID {
			return nil, apperr.Validation("message %s does not belong to workflow %s", id, w.ID)
		}
		if msg.SenderID == p.UserID {
			return nil, apperr.Validation("cannot mark own message as read")
		}
		updated, err := s.db.MarkMessageRead(id, p.UserID, now)
		if err != nil {
			return nil, err
		}
		state, err := s.db.GetReadState(id, p.UserID)
		if err != nil {
			return nil, err
		}
		results = append(results, ReadResult{
			MessageID:   id,
			ReadAt:      state.ReadAt,
			AlreadyRead: !updated,
		})
	}

	s.audit.Record(audit.Event{
		Action:   "message.mark_read",
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   w.ID,
		Metadata: map[string]interface{}{"marked": len(results)},
	})
	return results, nil
}

// SoftDelete hides a message. When the actor is the sender the whole
// message disappears for every party; when the actor is a recipient only
// their own copy is hidden. The asymmetry is deliberate and mirrors the
// product behavior.
func (s *Service) SoftDelete(ctx context.Context, p *models.Principal, messageID string) error {
	msg, err := s.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	w, err := s.db.GetWorkflow(msg.WorkflowID)
	if err != nil {
		return err
	}
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeView); err != nil {
		return err
	}

	now := time.Now()
	var action string
	if msg.SenderID == p.UserID {
		if err := s.db.SoftDeleteMessage(messageID, now); err != nil {
			return err
		}
		action = "message.delete"
	} else {
		if _, err := s.db.GetReadState(messageID, p.UserID); err != nil {
			return err
		}
		if err := s.db.SoftDeleteMessageForRecipient(messageID, p.UserID, now); err != nil {
			return err
		}
		action = "message.hide"
	}

	s.audit.Record(audit.Event{
		Action:   action,
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   messageID,
		Metadata: map[string]interface{}{"workflow_id": w.ID},
	})
	return nil
}

// BulkDeleteItem is one entry in the bulk hard delete ledger.
type BulkDeleteItem struct {
	ID              string   `json:"id"`
	OK              bool     `json:"ok"`
	Error           string   `json:"error,omitempty"`
	StorageFailures []string `json:"storage_failures,omitempty"`
}

// BulkHardDeleteRequest selects already-soft-deleted messages to purge.
type BulkHardDeleteRequest struct {
	IDs           []string `json:"ids,omitempty"`
	TenantID      string   `json:"tenant_id,omitempty"`
	OlderThanDays int      `json:"older_than_days,omitempty"`
}

// BulkHardDelete permanently removes already-soft-deleted messages. Items
// are processed independently: blobs are reclaimed before rows, storage
// failures are recorded per item and never abort the batch, and each
// item's authorization is checked against its own tenant.
func (s *Service) BulkHardDelete(ctx context.Context, p *models.Principal, req *BulkHardDeleteRequest) ([]BulkDeleteItem, error) {
	if p == nil || p.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	if len(req.IDs) == 0 && req.TenantID == "" && req.OlderThanDays <= 0 {
		return nil, apperr.Validation("criteria required: ids, tenant_id or older_than_days")
	}

	criteria := database.MessageCriteria{
		IDs:      req.IDs,
		TenantID: req.TenantID,
	}
	if req.OlderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -req.OlderThanDays)
		criteria.OlderThan = &cutoff
	}

	msgs, err := s.db.ListSoftDeletedMessages(criteria)
	if err != nil {
		return nil, err
	}

	ledger := make([]BulkDeleteItem, 0, len(msgs))
	for _, msg := range msgs {
		item := s.hardDeleteOne(ctx, p, msg)
		if item.OK {
			metrics.HardDeleteOutcomes.WithLabelValues("deleted").Inc()
		} else {
			metrics.HardDeleteOutcomes.WithLabelValues("failed").Inc()
		}
		ledger = append(ledger, item)
	}
	return ledger, nil
}

func (s *Service) hardDeleteOne(ctx context.Context, p *models.Principal, msg models.WorkflowMessage) BulkDeleteItem {
	item := BulkDeleteItem{ID: msg.ID}

	w, err := s.db.GetWorkflow(msg.WorkflowID)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	if err := s.access.CanAccess(p, w.TenantID, msg.WorkflowID, access.ScopeAdminDelete); err != nil {
		item.Error = err.Error()
		return item
	}

	// Blobs go first so a row never outlives the pointer to a blob we
	// failed to find again later. Failures are recorded, not fatal.
	attachments, err := s.db.ListAttachmentsByMessage(msg.ID)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	for _, a := range attachments {
		if err := s.store.DeleteObject(a.StorageKey); err != nil {
			item.StorageFailures = append(item.StorageFailures, a.StorageKey)
		}
	}

	if err := s.db.HardDeleteMessage(msg.ID); err != nil {
		item.Error = err.Error()
		return item
	}

	item.OK = true
	s.audit.Record(audit.Event{
		Action:   "message.hard_delete",
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   msg.ID,
		Metadata: map[string]interface{}{
			"workflow_id":      msg.WorkflowID,
			"storage_failures": len(item.StorageFailures),
		},
	})
	return item
}
