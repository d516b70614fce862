package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-collab-backend/pkg/handlers"
	"workflow-collab-backend/pkg/logger"
)

func TestStreamDeliversTenantMessages(t *testing.T) {
	env := newHandlerEnv(t)
	h := handlers.NewStreamHandler(env.cfg, env.db, env.eval, logger.Global(true))
	ctx := context.Background()

	w, _, err := env.svc.Create(ctx, initiator, env.tenantID, "alerts", nil)
	require.NoError(t, err)
	inv, err := env.svc.Invite(ctx, initiator, w.ID, partner.UserID, nil)
	require.NoError(t, err)
	_, err = env.svc.Resolve(ctx, partner, inv.ID, "accept")
	require.NoError(t, err)

	msg, err := env.svc.Send(ctx, initiator, w.ID, sendBody("ping"))
	require.NoError(t, err)

	// Connect with a watermark in the past so the first poll tick picks
	// up the existing message; the request context ends the stream.
	since := time.Now().Add(-time.Minute).Format(time.RFC3339)
	req := authedRequest(t, http.MethodGet, "/api/workflows/"+env.tenantID+"/stream?since="+since,
		nil, partner, map[string]string{"id": env.tenantID})
	streamCtx, cancel := context.WithTimeout(req.Context(), 150*time.Millisecond)
	defer cancel()
	req = req.WithContext(streamCtx)

	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: message")
	assert.Contains(t, body, msg.ID)
}

func TestStreamSkipsSenderAndForeignWorkflows(t *testing.T) {
	env := newHandlerEnv(t)
	h := handlers.NewStreamHandler(env.cfg, env.db, env.eval, logger.Global(true))
	ctx := context.Background()

	// partner participates in one workflow but not the other
	wShared, _, err := env.svc.Create(ctx, initiator, env.tenantID, "shared", nil)
	require.NoError(t, err)
	inv, err := env.svc.Invite(ctx, initiator, wShared.ID, partner.UserID, nil)
	require.NoError(t, err)
	_, err = env.svc.Resolve(ctx, partner, inv.ID, "accept")
	require.NoError(t, err)

	wPrivate, _, err := env.svc.Create(ctx, initiator, env.tenantID, "private", nil)
	require.NoError(t, err)

	shared, err := env.svc.Send(ctx, initiator, wShared.ID, sendBody("for partner"))
	require.NoError(t, err)
	own, err := env.svc.Send(ctx, partner, wShared.ID, sendBody("from partner"))
	require.NoError(t, err)
	private, err := env.svc.Send(ctx, initiator, wPrivate.ID, sendBody("not for partner"))
	require.NoError(t, err)

	since := time.Now().Add(-time.Minute).Format(time.RFC3339)
	req := authedRequest(t, http.MethodGet, "/api/workflows/"+env.tenantID+"/stream?since="+since,
		nil, partner, map[string]string{"id": env.tenantID})
	streamCtx, cancel := context.WithTimeout(req.Context(), 150*time.Millisecond)
	defer cancel()
	req = req.WithContext(streamCtx)

	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, shared.ID)
	assert.NotContains(t, body, own.ID, "own messages are not notified back")
	assert.NotContains(t, body, private.ID, "non-participant workflows are filtered")
}

func TestStreamRejectsForeignTenant(t *testing.T) {
	env := newHandlerEnv(t)
	h := handlers.NewStreamHandler(env.cfg, env.db, env.eval, logger.Global(true))

	req := authedRequest(t, http.MethodGet, "/api/workflows/"+env.tenantID+"/stream",
		nil, intruder, map[string]string{"id": env.tenantID})
	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamEmitsHeartbeats(t *testing.T) {
	env := newHandlerEnv(t)
	h := handlers.NewStreamHandler(env.cfg, env.db, env.eval, logger.Global(true))

	// The fixture heartbeat interval is 40ms; a 150ms window fits several.
	req := authedRequest(t, http.MethodGet, "/api/workflows/"+env.tenantID+"/stream",
		nil, initiator, map[string]string{"id": env.tenantID})
	streamCtx, cancel := context.WithTimeout(req.Context(), 150*time.Millisecond)
	defer cancel()
	req = req.WithContext(streamCtx)

	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	assert.Contains(t, rec.Body.String(), "event: heartbeat")
}

func TestStreamDeliversMessageAtWatermarkExactly(t *testing.T) {
	env := newHandlerEnv(t)
	h := handlers.NewStreamHandler(env.cfg, env.db, env.eval, logger.Global(true))
	ctx := context.Background()

	w, _, err := env.svc.Create(ctx, initiator, env.tenantID, "boundary", nil)
	require.NoError(t, err)
	inv, err := env.svc.Invite(ctx, initiator, w.ID, partner.UserID, nil)
	require.NoError(t, err)
	_, err = env.svc.Resolve(ctx, partner, inv.ID, "accept")
	require.NoError(t, err)

	msg, err := env.svc.Send(ctx, initiator, w.ID, sendBody("edge"))
	require.NoError(t, err)

	// A watermark equal to the message's created_at must still deliver it
	since := url.QueryEscape(msg.CreatedAt.Format(time.RFC3339Nano))
	req := authedRequest(t, http.MethodGet, "/api/workflows/"+env.tenantID+"/stream?since="+since,
		nil, partner, map[string]string{"id": env.tenantID})
	streamCtx, cancel := context.WithTimeout(req.Context(), 150*time.Millisecond)
	defer cancel()
	req = req.WithContext(streamCtx)

	rec := httptest.NewRecorder()
	h.Stream(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, msg.ID)
	// Several poll ticks fit in the window; the id still arrives once
	assert.Equal(t, 1, strings.Count(body, msg.ID))
}
