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

// TestCollaborationRoundTrip walks a workflow through a full life:
// initiator and participant exchange a message, read receipts settle
// idempotently, the workflow terminates exactly once, and a zero-TTL
// invitation issued afterwards is dead on arrival.
func TestCollaborationRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	// alice sends, bob reads twice; the second call reports the same
	// readAt instead of advancing it.
	msg, err := env.svc.Send(ctx, alice, w.ID, sendText("draft is up"))
	require.NoError(t, err)

	first, err := env.svc.MarkRead(ctx, bob, w.ID, []string{msg.ID})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.False(t, first[0].AlreadyRead)
	require.NotNil(t, first[0].ReadAt)

	second, err := env.svc.MarkRead(ctx, bob, w.ID, []string{msg.ID})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].AlreadyRead)
	require.NotNil(t, second[0].ReadAt)
	assert.True(t, first[0].ReadAt.Equal(*second[0].ReadAt))

	// alice terminates; bob repeating the action loses the race against
	// the transition table, not against another writer.
	terminated, err := env.svc.Transition(ctx, alice, w.ID, models.ActionTerminate)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowTerminated, terminated.Status)

	_, err = env.svc.Transition(ctx, bob, w.ID, models.ActionTerminate)
	assert.Equal(t, apperr.KindInvalidStateTransition, apperr.KindOf(err))

	got, err := env.svc.Get(ctx, alice, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowTerminated, got.Workflow.Status)

	// a zero-TTL invitation is born expired: carol's accept returns
	// EXPIRED and the stored row flips to expired without enrolling her.
	ttl := time.Duration(0)
	inv, err := env.svc.Invite(ctx, alice, w.ID, carol.UserID, &ttl)
	require.NoError(t, err)

	_, err = env.svc.Resolve(ctx, carol, inv.ID, models.DecisionAccept)
	assert.Equal(t, apperr.KindExpired, apperr.KindOf(err))

	stored, err := env.db.GetInvitation(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, stored.Status)

	participants, err := env.db.ListParticipants(w.ID)
	require.NoError(t, err)
	for _, p := range participants {
		assert.NotEqual(t, carol.UserID, p.UserID)
	}
}
