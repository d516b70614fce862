package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/middleware"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/storage"
	"workflow-collab-backend/pkg/workflow"
)

type handlerEnv struct {
	cfg  *config.Config
	db   *database.MemoryDatabase
	svc  *workflow.Service
	eval *access.Evaluator

	tenantID      string
	otherTenantID string
}

var (
	initiator = &models.Principal{UserID: "u-initiator", Email: "initiator@acme.test"}
	partner   = &models.Principal{UserID: "u-partner", Email: "partner@acme.test"}
	intruder  = &models.Principal{UserID: "u-intruder", Email: "intruder@rival.test"}
)

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	cfg := &config.Config{
		Environment:             "test",
		JWTSecret:               "test-secret",
		StreamPollInterval:      20 * time.Millisecond,
		StreamHeartbeatInterval: 40 * time.Millisecond,
	}
	db := database.NewMemoryDatabase()
	eval := access.NewEvaluator(db, audit.Nop())
	svc := workflow.NewService(db, storage.NewMemoryStore(), eval, audit.Nop(), nil)

	acme := &models.Tenant{Name: "acme", OwnerID: "acme-owner"}
	require.NoError(t, db.CreateTenant(acme))
	rival := &models.Tenant{Name: "rival", OwnerID: intruder.UserID}
	require.NoError(t, db.CreateTenant(rival))

	for _, userID := range []string{initiator.UserID, partner.UserID} {
		require.NoError(t, db.AddTenantMember(&models.TenantMembership{
			TenantID: acme.ID, UserID: userID, Role: models.TenantRoleAuthor,
		}))
	}

	return &handlerEnv{
		cfg:           cfg,
		db:            db,
		svc:           svc,
		eval:          eval,
		tenantID:      acme.ID,
		otherTenantID: rival.ID,
	}
}

// authedRequest builds a request carrying the principal and chi URL
// params, the way the router middlewares would.
func authedRequest(t *testing.T, method, target string, body interface{}, p *models.Principal, params map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	ctx := context.WithValue(req.Context(), middleware.PrincipalContextKey, p)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func sendBody(content string) *workflow.SendRequest {
	return &workflow.SendRequest{Content: content}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}
