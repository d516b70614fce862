package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/models"
)

func TestInviteAndAccept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w, _, err := env.svc.Create(ctx, alice, env.tenantID, "launch plan", nil)
	require.NoError(t, err)

	// Execute
	inv, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, models.ParticipantRecipient, inv.Role)

	resolved, err := env.svc.Resolve(ctx, carol, inv.ID, models.DecisionAccept)

	// Verify
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, resolved.Status)

	isPart, err := env.db.IsParticipant(w.ID, carol.UserID)
	require.NoError(t, err)
	assert.True(t, isPart)
}

func TestInviteValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	// already a participant
	_, err := env.svc.Invite(ctx, alice, w.ID, bob.UserID, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// negative ttl
	neg := -time.Hour
	_, err = env.svc.Invite(ctx, alice, w.ID, carol.UserID, &neg)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// non-participant member cannot invite
	_, err = env.svc.Invite(ctx, carol, w.ID, "dave", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestDuplicatePendingInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	_, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)
	require.NoError(t, err)

	_, err = env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)

	require.Error(t, err)
	assert.Equal(t, apperr.KindDuplicateInvitation, apperr.KindOf(err))
}

func TestResolveOnlyByInvitee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	inv, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)
	require.NoError(t, err)

	_, err = env.svc.Resolve(ctx, bob, inv.ID, models.DecisionAccept)

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestResolveTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	inv, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)
	require.NoError(t, err)

	_, err = env.svc.Resolve(ctx, carol, inv.ID, models.DecisionReject)
	require.NoError(t, err)

	// Second resolution observes the settled state, whatever the decision.
	_, err = env.svc.Resolve(ctx, carol, inv.ID, models.DecisionAccept)
	require.Error(t, err)
	assert.Equal(t, apperr.KindAlreadyResolved, apperr.KindOf(err))

	isPart, err := env.db.IsParticipant(w.ID, carol.UserID)
	require.NoError(t, err)
	assert.False(t, isPart)
}

func TestZeroTTLInvitationExpiresImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	zero := time.Duration(0)
	inv, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, &zero)
	require.NoError(t, err)

	_, err = env.svc.Resolve(ctx, carol, inv.ID, models.DecisionAccept)

	require.Error(t, err)
	assert.Equal(t, apperr.KindExpired, apperr.KindOf(err))

	// Expiry is persisted as a side effect of the failed resolve.
	got, err := env.db.GetInvitation(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, got.Status)

	isPart, err := env.db.IsParticipant(w.ID, carol.UserID)
	require.NoError(t, err)
	assert.False(t, isPart)
}

func TestResend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	inv, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)
	require.NoError(t, err)

	extended, err := env.svc.Resend(ctx, alice, inv.ID)
	require.NoError(t, err)
	assert.True(t, extended.ExpiresAt.After(inv.ExpiresAt))

	// A resolved invitation cannot be resent.
	_, err = env.svc.Resolve(ctx, carol, extended.ID, models.DecisionAccept)
	require.NoError(t, err)
	_, err = env.svc.Resend(ctx, alice, extended.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidStateTransition, apperr.KindOf(err))
}

func TestResendDeniedForUnrelatedMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	inv, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)
	require.NoError(t, err)

	// carol is the invitee, not the inviter, and not a participant
	_, err = env.svc.Resend(ctx, carol, inv.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// bob is a participant, so he may resend
	_, err = env.svc.Resend(ctx, bob, inv.ID)
	require.NoError(t, err)
}

func TestListForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	_, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, nil)
	require.NoError(t, err)

	list, err := env.svc.ListForUser(ctx, carol)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, w.ID, list[0].WorkflowID)

	list, err = env.svc.ListForUser(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, list)
}
