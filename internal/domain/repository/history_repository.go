package repository

import (
	"context"

	"motwatch-service/internal/domain/entity"
)

// HistoryRepository defines the interface to the upstream vehicle-history
// API.
type HistoryRepository interface {
	// FetchHistory returns the vehicle and its full test list. Errors map
	// to the taxonomy in entity/errors.go: entity.ErrNotFound for an
	// unknown registration, entity.ErrRateLimited on 429,
	// entity.ErrTimeout on deadline, entity.ErrUpstream otherwise.
	FetchHistory(ctx context.Context, registration string) (*entity.VehicleRecord, error)
}
