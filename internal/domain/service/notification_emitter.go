package service

import (
	"context"

	"beacon/pkg/protocol"

	"github.com/google/uuid"
)

// NotificationEmitter hands an envelope to the realtime tier for delivery to a user's open connections.
// Delivery is best effort: a nil error means the bridge accepted it, not that the user was online.
type NotificationEmitter interface {
	// Emit forwards env to every open connection of userID
	Emit(ctx context.Context, userID uuid.UUID, env protocol.Envelope) error

	// Close releases any resources held by the emitter
	Close() error
}
