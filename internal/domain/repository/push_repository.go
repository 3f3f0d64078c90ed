package repository

import (
	"context"

	"motwatch-service/internal/domain/entity"
)

// PushRepository defines the interface to the push delivery relay.
type PushRepository interface {
	// Send delivers one message to one endpoint. Returns
	// entity.ErrEndpointGone when the relay reports the endpoint
	// permanently invalid (404/410); any other error is transient.
	Send(ctx context.Context, endpoint entity.PushEndpoint, msg *entity.PushMessage) error
}
