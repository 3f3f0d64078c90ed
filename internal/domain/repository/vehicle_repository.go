package repository

import (
	"context"
	"time"

	"motwatch-service/internal/domain/entity"
)

// VehicleRepository defines storage operations for tracked vehicles. Every
// mutation touches a single document so updates stay atomic per vehicle.
type VehicleRepository interface {
	Create(ctx context.Context, vehicle *entity.TrackedVehicle) error
	FindByRegistration(ctx context.Context, registration string) (*entity.TrackedVehicle, error)
	ListEnabled(ctx context.Context) ([]*entity.TrackedVehicle, error)

	// RecordCheckOutcome writes one scheduler pass in a single update:
	// lastCheckedAt always, baseline/pending/details only when the outcome
	// carries an update.
	RecordCheckOutcome(ctx context.Context, registration string, outcome *entity.CheckOutcome) error

	// SeedBaseline sets the baseline test date without raising a pending
	// update. Used by the best-effort fetch at subscribe time.
	SeedBaseline(ctx context.Context, registration string, baseline time.Time) error

	// ClaimPendingUpdate atomically reads and clears the pending flag.
	// Exactly one concurrent caller receives the details; everyone else
	// gets (nil, nil). The vehicle not existing at all is not this
	// method's concern — callers check that first.
	ClaimPendingUpdate(ctx context.Context, registration string) (*entity.UpdateDetails, error)

	// Delete removes the tracking record. Returns entity.ErrNotFound when
	// the registration was never subscribed.
	Delete(ctx context.Context, registration string) error
}
