package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chiRoute "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/config"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/logger"
	"workflow-collab-backend/pkg/metrics"
	"workflow-collab-backend/pkg/middleware"
	"workflow-collab-backend/pkg/models"
	"workflow-collab-backend/pkg/utils"
)

const streamPollLimit = 200

// StreamHandler serves the tenant notification channel over SSE. The
// channel is stateless: each connection polls the database on a ticker
// and keeps a watermark of the newest message it has delivered. There is
// no connection registry and no cross-instance fanout, so any instance
// can serve any connection.
type StreamHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	access *access.Evaluator
	log    *logger.Logger
}

func NewStreamHandler(cfg *config.Config, db database.DatabaseInterface, eval *access.Evaluator, log *logger.Logger) *StreamHandler {
	return &StreamHandler{config: cfg, db: db, access: eval, log: log}
}

type streamEvent struct {
	MessageID  string    `json:"message_id"`
	WorkflowID string    `json:"workflow_id"`
	SenderID   string    `json:"sender_id"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stream handles GET /api/workflows/{tenantID}/stream.
//
// The watermark starts at connect time, or at ?since= (RFC3339) when the
// client reconnects and wants to backfill. Every poll tick delivers
// messages newer than the watermark, filtered to workflows the caller may
// view; heartbeats keep proxies from reaping idle connections.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	p, err := middleware.RequirePrincipal(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	tenantID := chiRoute.URLParam(r, "id")

	if err := h.access.CanAccess(p, tenantID, "", access.ScopeList); err != nil {
		utils.WriteMaskedAppError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteErrorResponse(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementStreamConnections()
	defer metrics.DecrementStreamConnections()

	watermark := time.Now()
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			watermark = t
		}
	}

	h.sendEvent(w, flusher, "connected", map[string]interface{}{
		"tenant_id": tenantID,
		"since":     watermark.Format(time.RFC3339Nano),
	})

	delivered := make(map[string]bool)

	pollTicker := time.NewTicker(h.config.StreamPollInterval)
	defer pollTicker.Stop()
	heartbeatTicker := time.NewTicker(h.config.StreamHeartbeatInterval)
	defer heartbeatTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeatTicker.C:
			h.sendEvent(w, flusher, "heartbeat", map[string]interface{}{
				"ts": time.Now().Format(time.RFC3339Nano),
			})
		case <-pollTicker.C:
			next, seen, err := h.deliverSince(w, flusher, p, tenantID, watermark, delivered)
			if err != nil {
				h.log.Warn("stream poll failed",
					zap.String("tenant_id", tenantID),
					zap.String("user_id", p.UserID),
					zap.Error(err))
				continue
			}
			watermark, delivered = next, seen
		}
	}
}

// deliverSince emits every visible message at or after the watermark and
// returns the advanced watermark plus the ids already handled at that
// boundary timestamp. Fetching at-or-after with boundary dedup means a
// message committed with a created_at equal to the watermark is picked up
// on the next tick instead of dropped; duplicates never leave the set.
// Access decisions are cached per tick so a burst of messages in one
// workflow costs one evaluator call.
func (h *StreamHandler) deliverSince(w http.ResponseWriter, flusher http.Flusher, p *models.Principal, tenantID string, watermark time.Time, delivered map[string]bool) (time.Time, map[string]bool, error) {
	msgs, err := h.db.ListTenantMessagesSince(tenantID, watermark, streamPollLimit)
	if err != nil {
		return watermark, delivered, err
	}

	allowed := make(map[string]bool)
	next := watermark
	for _, msg := range msgs {
		if msg.CreatedAt.After(next) {
			next = msg.CreatedAt
		}
		if msg.CreatedAt.Equal(watermark) && delivered[msg.ID] {
			continue
		}
		if msg.SenderID == p.UserID {
			continue
		}

		ok, cached := allowed[msg.WorkflowID]
		if !cached {
			ok = h.access.CanAccess(p, tenantID, msg.WorkflowID, access.ScopeView) == nil
			allowed[msg.WorkflowID] = ok
		}
		if !ok {
			continue
		}

		h.sendEvent(w, flusher, "message", streamEvent{
			MessageID:  msg.ID,
			WorkflowID: msg.WorkflowID,
			SenderID:   msg.SenderID,
			Type:       string(msg.Type),
			CreatedAt:  msg.CreatedAt,
		})
	}

	seen := delivered
	if !next.Equal(watermark) {
		seen = make(map[string]bool)
	}
	for _, msg := range msgs {
		if msg.CreatedAt.Equal(next) {
			seen[msg.ID] = true
		}
	}
	return next, seen, nil
}

func (h *StreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
	metrics.StreamEventsTotal.WithLabelValues(event).Inc()
}
