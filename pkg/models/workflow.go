package models

import "time"

type WorkflowStatus string

const (
	WorkflowActive     WorkflowStatus = "active"
	WorkflowPaused     WorkflowStatus = "paused"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowTerminated WorkflowStatus = "terminated"
	WorkflowDeleted    WorkflowStatus = "deleted"
)

// WorkflowAction is a lifecycle action requested against a workflow.
type WorkflowAction string

const (
	ActionComplete   WorkflowAction = "complete"
	ActionTerminate  WorkflowAction = "terminate"
	ActionPause      WorkflowAction = "pause"
	ActionReactivate WorkflowAction = "reactivate"
	ActionSoftDelete WorkflowAction = "soft_delete"
)

// Workflow is a tenant-scoped collaboration unit with a lifecycle and a
// message thread. The initiator is set at creation and never changes.
type Workflow struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	InitiatorID string         `json:"initiator_id" db:"initiator_id"`
	Title       string         `json:"title" db:"title"`
	Status      WorkflowStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy *string        `json:"completed_by,omitempty" db:"completed_by"`
}

type ParticipantRole string

const (
	ParticipantInitiator ParticipantRole = "initiator"
	ParticipantRecipient ParticipantRole = "recipient"
)

// WorkflowParticipant relates a user to a workflow. Identity is the
// (workflow_id, user_id) pair.
type WorkflowParticipant struct {
	WorkflowID string          `json:"workflow_id" db:"workflow_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Role       ParticipantRole `json:"role" db:"role"`
	JoinedAt   time.Time       `json:"joined_at" db:"joined_at"`
}

// WorkflowDetail is the full view returned by GET /api/workflows/{id}:
// the workflow plus its roster and the messages visible to the viewer.
type WorkflowDetail struct {
	Workflow     Workflow              `json:"workflow"`
	Participants []WorkflowParticipant `json:"participants"`
	Messages     []MessageView         `json:"messages"`
}
