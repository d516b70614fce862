package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/models"
)

func TestCreateWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Execute
	w, invitations, err := env.svc.Create(ctx, alice, env.tenantID, "design sync", []string{bob.UserID, carol.UserID, alice.UserID, ""})

	// Verify: initiator enrolled, everyone else only invited
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowActive, w.Status)
	assert.Equal(t, alice.UserID, w.InitiatorID)

	participants, err := env.db.ListParticipants(w.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, models.ParticipantInitiator, participants[0].Role)

	require.Len(t, invitations, 2)
	for _, inv := range invitations {
		assert.Equal(t, models.InvitationPending, inv.Status)
		assert.NotEmpty(t, inv.Token)
	}
}

func TestCreateWorkflowValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		p        *models.Principal
		tenantID string
		title    string
		wantKind apperr.Kind
	}{
		{"empty title", alice, env.tenantID, "   ", apperr.KindValidation},
		{"unknown tenant", alice, "no-such-tenant", "x", apperr.KindValidation},
		{"initiator not a member", outsider, env.tenantID, "x", apperr.KindValidation},
		{"no principal", nil, env.tenantID, "x", apperr.KindUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.svc.Create(ctx, tc.p, tc.tenantID, tc.title, nil)
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, apperr.KindOf(err))
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		path    []models.WorkflowAction
		final   models.WorkflowStatus
		lastErr apperr.Kind // empty means the whole path succeeds
	}{
		{"pause then reactivate", []models.WorkflowAction{models.ActionPause, models.ActionReactivate}, models.WorkflowActive, ""},
		{"complete", []models.WorkflowAction{models.ActionComplete}, models.WorkflowCompleted, ""},
		{"terminate then reactivate", []models.WorkflowAction{models.ActionTerminate, models.ActionReactivate}, models.WorkflowActive, ""},
		{"soft delete from paused", []models.WorkflowAction{models.ActionPause, models.ActionSoftDelete}, models.WorkflowDeleted, ""},
		{"cannot pause completed", []models.WorkflowAction{models.ActionComplete, models.ActionPause}, models.WorkflowCompleted, apperr.KindInvalidStateTransition},
		{"terminate is not idempotent", []models.WorkflowAction{models.ActionTerminate, models.ActionTerminate}, models.WorkflowTerminated, apperr.KindInvalidStateTransition},
		{"cannot reactivate completed", []models.WorkflowAction{models.ActionComplete, models.ActionReactivate}, models.WorkflowCompleted, apperr.KindInvalidStateTransition},
		{"deleted is terminal for actions", []models.WorkflowAction{models.ActionSoftDelete, models.ActionReactivate}, models.WorkflowDeleted, apperr.KindInvalidStateTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.newWorkflow(t)

			var lastErr error
			for _, action := range tc.path {
				_, lastErr = env.svc.Transition(ctx, alice, w.ID, action)
			}

			if tc.lastErr == "" {
				require.NoError(t, lastErr)
			} else {
				require.Error(t, lastErr)
				assert.Equal(t, tc.lastErr, apperr.KindOf(lastErr))
			}

			got, err := env.db.GetWorkflow(w.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.final, got.Status)
		})
	}
}

func TestCompleteStampsActor(t *testing.T) {
	env := newTestEnv(t)
	w := env.newWorkflow(t)

	updated, err := env.svc.Transition(context.Background(), bob, w.ID, models.ActionComplete)

	require.NoError(t, err)
	require.NotNil(t, updated.CompletedBy)
	assert.Equal(t, bob.UserID, *updated.CompletedBy)
	require.NotNil(t, updated.CompletedAt)
}

func TestTransitionDeniedForNonParticipant(t *testing.T) {
	env := newTestEnv(t)
	w := env.newWorkflow(t)

	// carol is a tenant member but not on this workflow
	_, err := env.svc.Transition(context.Background(), carol, w.ID, models.ActionPause)

	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestTransitionAllowedForTenantAdmin(t *testing.T) {
	env := newTestEnv(t)
	w := env.newWorkflow(t)

	_, err := env.svc.Transition(context.Background(), admin, w.ID, models.ActionPause)
	require.NoError(t, err)

	_, err = env.svc.Transition(context.Background(), sysAdmin, w.ID, models.ActionReactivate)
	require.NoError(t, err)
}

func TestPermanentDeleteRequiresSoftDeletedStatus(t *testing.T) {
	env := newTestEnv(t)
	w := env.newWorkflow(t)
	ctx := context.Background()

	// Execute: still active
	_, err := env.svc.PermanentlyDelete(ctx, alice, w.ID)

	// Verify
	require.Error(t, err)
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))

	// Soft delete first, then permanent deletion succeeds
	_, err = env.svc.Transition(ctx, alice, w.ID, models.ActionSoftDelete)
	require.NoError(t, err)

	report, err := env.svc.PermanentlyDelete(ctx, alice, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, report.WorkflowID)

	_, err = env.db.GetWorkflow(w.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetReturnsViewerScopedMessages(t *testing.T) {
	env := newTestEnv(t)
	w := env.newWorkflow(t)
	ctx := context.Background()

	_, err := env.svc.Send(ctx, alice, w.ID, sendText("hello bob"))
	require.NoError(t, err)

	detail, err := env.svc.Get(ctx, bob, w.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Participants, 2)
	require.Len(t, detail.Messages, 1)
	assert.False(t, detail.Messages[0].IsRead)
}

func TestListByTenantRoleGate(t *testing.T) {
	env := newTestEnv(t)
	env.newWorkflow(t)
	ctx := context.Background()

	// author role may list
	list, err := env.svc.ListByTenant(ctx, alice, env.tenantID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// bare member role may not
	_, err = env.svc.ListByTenant(ctx, bob, env.tenantID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// soft-deleted workflows drop out of the listing
	w := list[0]
	_, err = env.svc.Transition(ctx, alice, w.ID, models.ActionSoftDelete)
	require.NoError(t, err)
	list, err = env.svc.ListByTenant(ctx, alice, env.tenantID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
