package repository

import (
	"context"
	"time"

	"motwatch-service/internal/domain/entity"
)

// SubscriptionRepository defines storage operations for device push
// subscriptions, keyed by (registration, deviceId).
type SubscriptionRepository interface {
	// Upsert creates or replaces the subscription for (registration,
	// deviceId), reactivating it if it had been deactivated.
	Upsert(ctx context.Context, sub *entity.DeviceSubscription) error

	// FindActiveByVehicle returns the active subscriptions for one
	// registration, the dispatcher's fan-out set.
	FindActiveByVehicle(ctx context.Context, registration string) ([]*entity.DeviceSubscription, error)

	// Deactivate flips active=false after the push relay reports the
	// endpoint permanently gone. The row is kept for audit.
	Deactivate(ctx context.Context, registration, deviceID string) error

	MarkNotified(ctx context.Context, registration, deviceID string, at time.Time) error

	// Delete hard-deletes one device's subscription. Returns
	// entity.ErrNotFound when it does not exist.
	Delete(ctx context.Context, registration, deviceID string) error

	// DeleteByVehicle removes every subscription for a registration when
	// the vehicle itself is unsubscribed.
	DeleteByVehicle(ctx context.Context, registration string) error
}
