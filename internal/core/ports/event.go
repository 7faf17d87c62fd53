package ports

import (
	"context"
	"time"

	"github.com/parksys/parking-service/internal/core/domain"
)

type SessionEventType string

const (
	SessionOpened SessionEventType = "session.opened"
	SessionClosed SessionEventType = "session.closed"
	SessionsReset SessionEventType = "sessions.reset"
)

// SessionEvent describes a registry mutation. Session is the zero value for
// SessionsReset.
type SessionEvent struct {
	ID         string                `json:"id"`
	Type       SessionEventType      `json:"type"`
	OccurredAt time.Time             `json:"occurred_at"`
	Session    domain.VehicleSession `json:"session"`
}

// SessionEventPublisher receives registry mutations after they are committed.
type SessionEventPublisher interface {
	PublishSessionEvent(ctx context.Context, evt SessionEvent) error
}
