package database

import (
	"fmt"
	"time"

	"workflow-collab-backend/pkg/models"
)

// MessageCriteria selects already-soft-deleted messages for bulk hard
// deletion: an explicit id list, a tenant, or an age threshold. Selectors
// combine with AND when several are set.
type MessageCriteria struct {
	IDs       []string
	TenantID  string
	OlderThan *time.Time
}

// PurgeCounts reports how many rows each step of a workflow purge removed.
type PurgeCounts struct {
	Messages     int64 `json:"messages"`
	Participants int64 `json:"participants"`
	Invitations  int64 `json:"invitations"`
}

// DatabaseInterface is the single synchronization point of the engine:
// no workflow state is cached in-process, every handler instance reads
// and writes through here. Conditional updates return a matched flag so
// callers can tell a lost race from success.
type DatabaseInterface interface {
	// Tenants & memberships (membership rows are synced from the external
	// identity system; the engine reads them for the access evaluator)
	CreateTenant(t *models.Tenant) error
	GetTenant(tenantID string) (*models.Tenant, error)
	AddTenantMember(m *models.TenantMembership) error
	ListTenantMembers(tenantID string) ([]models.TenantMembership, error)
	GetTenantRole(tenantID, userID string) (models.TenantRole, bool, error)

	// Workflows & participants
	CreateWorkflow(w *models.Workflow) error
	GetWorkflow(workflowID string) (*models.Workflow, error)
	ListWorkflowsByTenant(tenantID string, includeDeleted bool) ([]models.Workflow, error)
	// UpdateWorkflowStatus performs the guarded transition write: the row
	// only changes when its current status equals from. Returns false when
	// another actor won the transition first.
	UpdateWorkflowStatus(workflowID string, from, to models.WorkflowStatus, completedBy *string, completedAt *time.Time) (bool, error)
	ListParticipants(workflowID string) ([]models.WorkflowParticipant, error)
	IsParticipant(workflowID, userID string) (bool, error)

	// Invitations
	CreateInvitation(inv *models.WorkflowInvitation) error
	GetInvitation(invitationID string) (*models.WorkflowInvitation, error)
	FindPendingInvitation(workflowID, inviteeID string) (*models.WorkflowInvitation, error)
	ListInvitationsForUser(userID string) ([]models.WorkflowInvitation, error)
	// AcceptInvitation atomically flips pending->accepted and inserts the
	// participant row in one transaction. Returns false when the
	// invitation was no longer pending (race loser).
	AcceptInvitation(invitationID string, participant *models.WorkflowParticipant) (bool, error)
	// UpdateInvitationStatus flips pending->status (rejected/expired)
	// under the same guard.
	UpdateInvitationStatus(invitationID string, status models.InvitationStatus) (bool, error)
	// ExtendInvitation moves expires_at forward, only while still pending.
	ExtendInvitation(invitationID string, expiresAt time.Time) (bool, error)

	// Messages, read state, children
	CreateMessage(msg *models.WorkflowMessage, attachments []models.MessageAttachment, links []models.MessageLink, recipientIDs []string) error
	GetMessage(messageID string) (*models.WorkflowMessage, error)
	ListMessagesForViewer(workflowID, viewerID string) ([]models.MessageView, error)
	GetReadState(messageID, recipientID string) (*models.MessageRecipient, error)
	// MarkMessageRead sets is_read only when currently unread; returns
	// false when the message was already read (idempotent no-op).
	MarkMessageRead(messageID, recipientID string, readAt time.Time) (bool, error)
	MarkAllRead(workflowID, recipientID string, readAt time.Time) (int64, error)
	SoftDeleteMessage(messageID string, deletedAt time.Time) error
	SoftDeleteMessageForRecipient(messageID, recipientID string, deletedAt time.Time) error
	ListSoftDeletedMessages(criteria MessageCriteria) ([]models.WorkflowMessage, error)
	ListAttachmentsByMessage(messageID string) ([]models.MessageAttachment, error)
	HardDeleteMessage(messageID string) error

	// Cascading deletion support
	ListAttachmentsByWorkflow(workflowID string) ([]models.MessageAttachment, error)
	// PurgeWorkflow removes messages (and their children), participants,
	// invitations and the workflow row in one transaction, in that order.
	PurgeWorkflow(workflowID string) (*PurgeCounts, error)

	// Notification channel watermark query: messages created at or
	// after since, oldest first. The boundary is inclusive; callers
	// dedup repeats at the since timestamp.
	ListTenantMessagesSince(tenantID string, since time.Time, limit int) ([]models.WorkflowMessage, error)

	HealthCheck() error
	Close() error
}

// DatabaseConfig selects and parameterizes the backing store.
type DatabaseConfig struct {
	PostgresDSN string
	Debug       bool
}

// NewDatabase picks the database implementation from config. Deployments
// require PostgreSQL; the in-memory store exists for development and
// tests only.
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if config.PostgresDSN != "" {
		return NewPostgresDatabase(config.PostgresDSN)
	}
	return nil, fmt.Errorf("no database configured: set POSTGRES_DSN")
}
