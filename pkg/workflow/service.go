// Package workflow implements the collaboration engine core: the
// lifecycle state machine, invitation and participant management, the
// message store, and the cascading deletion coordinator. All state lives
// in the database; services here are stateless and safe to construct per
// request.
package workflow

import (
	"time"

	"workflow-collab-backend/pkg/access"
	"workflow-collab-backend/pkg/audit"
	"workflow-collab-backend/pkg/database"
	"workflow-collab-backend/pkg/logger"
	"workflow-collab-backend/pkg/storage"

	"go.uber.org/zap"
)

// DefaultInvitationTTL is both the default invitation lifetime and the
// extension window applied by resend.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Service carries the engine's dependencies.
type Service struct {
	db            database.DatabaseInterface
	store         storage.ObjectStore
	access        *access.Evaluator
	audit         audit.Sink
	log           *logger.Logger
	invitationTTL time.Duration
}

// Option configures optional Service settings.
type Option func(*Service)

// WithInvitationTTL overrides the default invitation lifetime.
func WithInvitationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.invitationTTL = ttl
		}
	}
}

// NewService wires the engine together.
func NewService(db database.DatabaseInterface, store storage.ObjectStore, evaluator *access.Evaluator, sink audit.Sink, log *logger.Logger, opts ...Option) *Service {
	if sink == nil {
		sink = audit.Nop()
	}
	if log == nil {
		log = &logger.Logger{Logger: zap.NewNop()}
	}
	s := &Service{
		db:            db,
		store:         store,
		access:        evaluator,
		audit:         sink,
		log:           log,
		invitationTTL: DefaultInvitationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Access exposes the evaluator for read-side consumers (the notification
// channel filters watermark results through the same decision).
func (s *Service) Access() *access.Evaluator {
	return s.access
}
