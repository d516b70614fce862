package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationExpired  InvitationStatus = "expired"
)

// WorkflowInvitation is a time-bounded offer to join a workflow.
// It leaves pending exactly once: accepted, rejected, or expired.
type WorkflowInvitation struct {
	ID         string           `json:"id" db:"id"`
	WorkflowID string           `json:"workflow_id" db:"workflow_id"`
	InviterID  string           `json:"inviter_id" db:"inviter_id"`
	InviteeID  string           `json:"invitee_id" db:"invitee_id"`
	Role       ParticipantRole  `json:"role" db:"role"`
	Token      string           `json:"token" db:"token"`
	Status     InvitationStatus `json:"status" db:"status"`
	ExpiresAt  time.Time        `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the invitation's deadline has passed at t.
func (inv *WorkflowInvitation) Expired(t time.Time) bool {
	return t.After(inv.ExpiresAt) || t.Equal(inv.ExpiresAt)
}

type InvitationDecision string

const (
	DecisionAccept InvitationDecision = "accept"
	DecisionReject InvitationDecision = "reject"
)
