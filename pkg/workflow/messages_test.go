package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/workflow"
)

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	// Execute
	msg, err := env.svc.Send(ctx, alice, w.ID, sendText("kickoff notes"))

	// Verify: bob gets an unread recipient row, the sender does not
	require.NoError(t, err)
	assert.Equal(t, models.MessageText, msg.Type)

	state, err := env.db.GetReadState(msg.ID, bob.UserID)
	require.NoError(t, err)
	assert.False(t, state.IsRead)

	_, err = env.db.GetReadState(msg.ID, alice.UserID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSendRequiresActiveWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	_, err := env.svc.Transition(ctx, alice, w.ID, models.ActionPause)
	require.NoError(t, err)

	_, err = env.svc.Send(ctx, alice, w.ID, sendText("too late"))

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestSendDeniedForNonParticipant(t *testing.T) {
	env := newTestEnv(t)
	w := env.newWorkflow(t)

	_, err := env.svc.Send(context.Background(), carol, w.ID, sendText("let me in"))

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestSendValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	// empty body
	_, err := env.svc.Send(ctx, alice, w.ID, sendText("   "))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// unknown type
	_, err = env.svc.Send(ctx, alice, w.ID, &workflow.SendRequest{Content: "x", Type: "carrier-pigeon"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// attachment without a storage key
	_, err = env.svc.Send(ctx, alice, w.ID, &workflow.SendRequest{
		Attachments: []models.MessageAttachment{{FileName: "plan.pdf"}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMarkReadIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	msg, err := env.svc.Send(ctx, alice, w.ID, sendText("please confirm"))
	require.NoError(t, err)

	// Execute twice
	first, err := env.svc.MarkRead(ctx, bob, w.ID, []string{msg.ID})
	require.NoError(t, err)
	second, err := env.svc.MarkRead(ctx, bob, w.ID, []string{msg.ID})
	require.NoError(t, err)

	// Verify: second call is a no-op with the original timestamp
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.False(t, first[0].AlreadyRead)
	assert.True(t, second[0].AlreadyRead)
	require.NotNil(t, first[0].ReadAt)
	require.NotNil(t, second[0].ReadAt)
	assert.Equal(t, *first[0].ReadAt, *second[0].ReadAt)
}

func TestMarkReadRejectsOwnMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	msg, err := env.svc.Send(ctx, alice, w.ID, sendText("mine"))
	require.NoError(t, err)

	_, err = env.svc.MarkRead(ctx, alice, w.ID, []string{msg.ID})

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	for i := 0; i < 3; i++ {
		_, err := env.svc.Send(ctx, alice, w.ID, sendText("update"))
		require.NoError(t, err)
	}

	_, err := env.svc.MarkRead(ctx, bob, w.ID, nil)
	require.NoError(t, err)

	views, err := env.db.ListMessagesForViewer(w.ID, bob.UserID)
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views {
		assert.True(t, v.IsRead)
	}
}

func TestSoftDeleteBySenderHidesForEveryone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	msg, err := env.svc.Send(ctx, alice, w.ID, sendText("retract me"))
	require.NoError(t, err)

	require.NoError(t, env.svc.SoftDelete(ctx, alice, msg.ID))

	for _, viewer := range []string{alice.UserID, bob.UserID} {
		views, err := env.db.ListMessagesForViewer(w.ID, viewer)
		require.NoError(t, err)
		assert.Empty(t, views, "viewer %s should not see the retracted message", viewer)
	}
}

func TestSoftDeleteByRecipientHidesOwnCopyOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	msg, err := env.svc.Send(ctx, alice, w.ID, sendText("noise"))
	require.NoError(t, err)

	require.NoError(t, env.svc.SoftDelete(ctx, bob, msg.ID))

	bobViews, err := env.db.ListMessagesForViewer(w.ID, bob.UserID)
	require.NoError(t, err)
	assert.Empty(t, bobViews)

	aliceViews, err := env.db.ListMessagesForViewer(w.ID, alice.UserID)
	require.NoError(t, err)
	assert.Len(t, aliceViews, 1)
}

func TestBulkHardDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	// Setup: a soft-deleted message with two attachments, one blob broken
	env.store.Put("blobs/a")
	env.store.Put("blobs/b")
	env.store.FailKeys["blobs/b"] = true

	msg, err := env.svc.Send(ctx, alice, w.ID, &workflow.SendRequest{
		Content: "attachments",
		Attachments: []models.MessageAttachment{
			{StorageKey: "blobs/a"},
			{StorageKey: "blobs/b"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, env.svc.SoftDelete(ctx, alice, msg.ID))

	// A second message that is not soft-deleted must be untouched
	keep, err := env.svc.Send(ctx, alice, w.ID, sendText("keep me"))
	require.NoError(t, err)

	// Execute as tenant admin
	ledger, err := env.svc.BulkHardDelete(ctx, admin, &workflow.BulkHardDeleteRequest{IDs: []string{msg.ID}})
	require.NoError(t, err)

	// Verify: rows gone, healthy blob reclaimed, failure recorded per item
	require.Len(t, ledger, 1)
	assert.True(t, ledger[0].OK)
	assert.Equal(t, []string{"blobs/b"}, ledger[0].StorageFailures)
	assert.False(t, env.store.Has("blobs/a"))

	_, err = env.db.GetMessage(msg.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = env.db.GetMessage(keep.ID)
	assert.NoError(t, err)
}

func TestBulkHardDeleteAdminGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.newWorkflow(t)

	msg, err := env.svc.Send(ctx, alice, w.ID, sendText("mine to delete?"))
	require.NoError(t, err)
	require.NoError(t, env.svc.SoftDelete(ctx, alice, msg.ID))

	// Execute as an ordinary participant
	ledger, err := env.svc.BulkHardDelete(ctx, alice, &workflow.BulkHardDeleteRequest{IDs: []string{msg.ID}})
	require.NoError(t, err)

	// Verify: the batch itself succeeds, the item is denied
	require.Len(t, ledger, 1)
	assert.False(t, ledger[0].OK)

	_, err = env.db.GetMessage(msg.ID)
	assert.NoError(t, err)

	// The denial goes through the evaluator, so it lands on the audit trail
	denied := false
	for _, ev := range env.audit.Events {
		if ev.Action == "access.denied" && ev.ActorID == alice.UserID && ev.Target == w.ID {
			denied = true
		}
	}
	assert.True(t, denied)
}
