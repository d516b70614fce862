// Package audit emits the append-only event trail required for every
// lifecycle transition, invitation resolution, message send/delete and
// access denial. The sink itself is an external collaborator; here events
// are written as structured log lines on a dedicated logger, which the
// platform's log pipeline ships to the append-only store.
package audit

import (
	"go.uber.org/zap"

	"workflow-collab-backend/pkg/logger"
)

// Event is one audit record. Before/After are state-machine statuses for
// transitions and empty otherwise; Metadata carries action-specific fields
// (snapshot counts, denial scopes, ledger summaries).
type Event struct {
	Action   string
	ActorID  string
	TenantID string
	Target   string
	Before   string
	After    string
	Metadata map[string]interface{}
}

// Sink records audit events.
type Sink interface {
	Record(ev Event)
}

type logSink struct {
	log *logger.Logger
}

// NewLogSink creates a Sink that writes events to the given logger.
func NewLogSink(log *logger.Logger) Sink {
	return &logSink{log: log.With(zap.String("channel", "audit"))}
}

func (s *logSink) Record(ev Event) {
	fields := []zap.Field{
		zap.String("action", ev.Action),
		zap.String("actor_id", ev.ActorID),
		zap.String("tenant_id", ev.TenantID),
		zap.String("target", ev.Target),
	}
	if ev.Before != "" {
		fields = append(fields, zap.String("before", ev.Before))
	}
	if ev.After != "" {
		fields = append(fields, zap.String("after", ev.After))
	}
	if len(ev.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", ev.Metadata))
	}
	s.log.Info("audit", fields...)
}

// Nop returns a Sink that discards events; used by tests that assert on
// behavior rather than the trail.
func Nop() Sink { return nopSink{} }

type nopSink struct{}

func (nopSink) Record(Event) {}

// Recorder is a Sink that retains events in memory, for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Record(ev Event) {
	r.Events = append(r.Events, ev)
}
