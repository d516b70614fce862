package workflow

import (
	"context"

	"go.uber.org/zap"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/metrics"
	"workflow-collab-backend/pkg/models"
)

// DeletionReport summarizes one workflow purge.
type DeletionReport struct {
	WorkflowID string               `json:"workflow_id"`
	Counts     database.PurgeCounts `json:"counts"`
	// BlobFailures lists storage keys whose object deletion failed.
	// Row deletion proceeds anyway; orphaned blobs are cheaper than
	// rows pointing at storage we can no longer enumerate.
	BlobFailures []string `json:"blob_failures,omitempty"`
}

// cascadeDelete reclaims every attachment blob for the workflow, then
// removes all rows in one transaction. Callers have already verified
// authorization and that the workflow is in the soft-deleted state.
func (s *Service) cascadeDelete(ctx context.Context, p *models.Principal, w *models.Workflow) (*DeletionReport, error) {
	report := &DeletionReport{WorkflowID: w.ID}

	attachments, err := s.db.ListAttachmentsByWorkflow(w.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		if err := s.store.DeleteObject(a.StorageKey); err != nil {
			s.log.Warn("blob deletion failed",
				zap.String("workflow_id", w.ID),
				zap.String("storage_key", a.StorageKey),
				zap.Error(err))
			report.BlobFailures = append(report.BlobFailures, a.StorageKey)
		}
	}

	counts, err := s.db.PurgeWorkflow(w.ID)
	if err != nil {
		return nil, err
	}
	report.Counts = *counts

	metrics.LifecycleTransitionsTotal.WithLabelValues("permanent_delete").Inc()
	s.audit.Record(audit.Event{
		Action:   "workflow.purge",
		ActorID:  p.UserID,
		TenantID: w.TenantID,
		Target:   w.ID,
		Before:   string(w.Status),
		Metadata: map[string]interface{}{
			"title":         w.Title,
			"messages":      counts.Messages,
			"participants":  counts.Participants,
			"invitations":   counts.Invitations,
			"blob_failures": len(report.BlobFailures),
		},
	})
	return report, nil
}

// BulkPurgeItem is one entry in the bulk permanent delete ledger.
type BulkPurgeItem struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Report *DeletionReport `json:"report,omitempty"`
}

// BulkPermanentDelete purges a batch of soft-deleted workflows. Items are
// independent: one workflow in the wrong state or tenant fails its own
// entry and the rest proceed.
func (s *Service) BulkPermanentDelete(ctx context.Context, p *models.Principal, workflowIDs []string) ([]BulkPurgeItem, error) {
	if p == nil || p.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	if len(workflowIDs) == 0 {
		return nil, apperr.Validation("workflow ids are required")
	}

	ledger := make([]BulkPurgeItem, 0, len(workflowIDs))
	for _, id := range workflowIDs {
		item := BulkPurgeItem{ID: id}
		report, err := s.purgeOne(ctx, p, id)
		if err != nil {
			item.Error = err.Error()
			metrics.HardDeleteOutcomes.WithLabelValues("failed").Inc()
		} else {
			item.OK = true
			item.Report = report
			metrics.HardDeleteOutcomes.WithLabelValues("deleted").Inc()
		}
		ledger = append(ledger, item)
	}
	return ledger, nil
}

func (s *Service) purgeOne(ctx context.Context, p *models.Principal, workflowID string) (*DeletionReport, error) {
	w, err := s.db.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanAccess(p, w.TenantID, w.ID, access.ScopeAdminDelete); err != nil {
		return nil, err
	}
	if w.Status != models.WorkflowDeleted {
		return nil, apperr.PreconditionFailed("workflow must be deleted before permanent removal, current status is %s", w.Status)
	}
	return s.cascadeDelete(ctx, p, w)
}
