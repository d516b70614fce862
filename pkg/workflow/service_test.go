package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/storage"
	"workflow-collab-backend/pkg/workflow"
)

// testEnv wires a Service over the in-memory database and object store.
type testEnv struct {
	db    *database.MemoryDatabase
	store *storage.MemoryStore
	audit *audit.Recorder
	svc   *workflow.Service

	tenantID string
}

// Fixed identities used across the suite.
var (
	sysAdmin = &models.Principal{UserID: "root", Email: "root@platform.test", IsSystemAdmin: true}
	owner    = &models.Principal{UserID: "owner", Email: "owner@acme.test"}
	admin    = &models.Principal{UserID: "admin", Email: "admin@acme.test"}
	alice    = &models.Principal{UserID: "alice", Email: "alice@acme.test"}
	bob      = &models.Principal{UserID: "bob", Email: "bob@acme.test"}
	carol    = &models.Principal{UserID: "carol", Email: "carol@acme.test"}
	outsider = &models.Principal{UserID: "mallory", Email: "mallory@other.test"}
)

func newTestEnv(t *testing.T, opts ...workflow.Option) *testEnv {
	t.Helper()

	db := database.NewMemoryDatabase()
	store := storage.NewMemoryStore()
	recorder := &audit.Recorder{}
	evaluator := access.NewEvaluator(db, recorder)
	svc := workflow.NewService(db, store, evaluator, recorder, nil, opts...)

	tenant := &models.Tenant{Name: "acme", OwnerID: owner.UserID}
	require.NoError(t, db.CreateTenant(tenant))

	members := []struct {
		userID string
		role   models.TenantRole
	}{
		{admin.UserID, models.TenantRoleAdmin},
		{alice.UserID, models.TenantRoleAuthor},
		{bob.UserID, models.TenantRoleMember},
		{carol.UserID, models.TenantRoleReviewer},
	}
	for _, m := range members {
		require.NoError(t, db.AddTenantMember(&models.TenantMembership{
			TenantID: tenant.ID,
			UserID:   m.userID,
			Role:     m.role,
		}))
	}

	return &testEnv{
		db:       db,
		store:    store,
		audit:    recorder,
		svc:      svc,
		tenantID: tenant.ID,
	}
}

func sendText(content string) *workflow.SendRequest {
	return &workflow.SendRequest{Content: content}
}

// newWorkflow creates an active workflow initiated by alice with bob
// enrolled as a participant.
func (env *testEnv) newWorkflow(t *testing.T) *models.Workflow {
	t.Helper()
	ctx := context.Background()

	w, _, err := env.svc.Create(ctx, alice, env.tenantID, "quarterly review", nil)
	require.NoError(t, err)

	inv, err := env.svc.Invite(ctx, alice, w.ID, bob.UserID, nil)
	require.NoError(t, err)
	_, err = env.svc.Resolve(ctx, bob, inv.ID, models.DecisionAccept)
	require.NoError(t, err)

	return w
}
