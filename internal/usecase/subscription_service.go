package usecase

import (
	"context"
	"fmt"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"
	"motwatch-service/pkg/logger"
	"motwatch-service/pkg/utils"
)

// SubscriptionService implements the consumer-facing operations: subscribe
// and unsubscribe a vehicle, register and remove device endpoints, and the
// claim-based poll.
type SubscriptionService struct {
	vehicleRepo      repository.VehicleRepository
	subscriptionRepo repository.SubscriptionRepository
	historyRepo      repository.HistoryRepository
	logger           logger.Logger
}

// SubscribeResult reports whether the tracking record was created or
// already existed. Both are success.
type SubscribeResult struct {
	Created      bool
	Registration string
}

// PollResult is the response to one pending-update poll. LastCheckedDate
// and LastMotTestDate are returned whether or not an update was claimed,
// so the caller can refresh its display either way.
type PollResult struct {
	HasUpdate        bool
	Registration     string
	LastCheckedDate  time.Time
	LastMotTestDate  *time.Time
	UpdateDetectedAt *time.Time
	Details          *entity.UpdateDetails
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	vehicleRepo repository.VehicleRepository,
	subscriptionRepo repository.SubscriptionRepository,
	historyRepo repository.HistoryRepository,
	logger logger.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		vehicleRepo:      vehicleRepo,
		subscriptionRepo: subscriptionRepo,
		historyRepo:      historyRepo,
		logger:           logger,
	}
}

// Subscribe starts tracking a registration. Re-subscribing an existing
// registration is a no-op success and does not touch the stored baseline.
// On create, one synchronous history fetch seeds the baseline best-effort;
// if it fails the baseline stays null and the next scheduled pass
// self-corrects.
func (s *SubscriptionService) Subscribe(ctx context.Context, registration string) (*SubscribeResult, error) {
	reg, err := normalizeRegistration(registration)
	if err != nil {
		return nil, err
	}

	existing, err := s.vehicleRepo.FindByRegistration(ctx, reg)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &SubscribeResult{Created: false, Registration: reg}, nil
	}

	vehicle := &entity.TrackedVehicle{
		Registration:  reg,
		Enabled:       true,
		LastCheckedAt: time.Now(),
	}
	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		return nil, err
	}

	s.logger.Info("Vehicle subscribed", "registration", reg)

	record, err := s.historyRepo.FetchHistory(ctx, reg)
	if err != nil {
		s.logger.Warn("Baseline fetch failed at subscribe, deferring to scheduler",
			"registration", reg,
			"error", err)
		return &SubscribeResult{Created: true, Registration: reg}, nil
	}

	if latest := record.LatestTest(); latest != nil {
		if err := s.vehicleRepo.SeedBaseline(ctx, reg, latest.CompletedDate); err != nil {
			s.logger.Warn("Failed to seed baseline",
				"registration", reg,
				"error", err)
		}
	}

	return &SubscribeResult{Created: true, Registration: reg}, nil
}

// Unsubscribe stops tracking a registration and removes its device
// subscriptions. Returns entity.ErrNotFound when it was never subscribed.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, registration string) error {
	reg, err := normalizeRegistration(registration)
	if err != nil {
		return err
	}

	if err := s.vehicleRepo.Delete(ctx, reg); err != nil {
		return err
	}

	if err := s.subscriptionRepo.DeleteByVehicle(ctx, reg); err != nil {
		s.logger.Warn("Failed to clean up device subscriptions",
			"registration", reg,
			"error", err)
	}

	s.logger.Info("Vehicle unsubscribed", "registration", reg)
	return nil
}

// PollPending attempts the atomic claim for a pending update. Under
// concurrent polls for the same vehicle at most one caller sees
// HasUpdate=true; the rest see a normal no-update response.
func (s *SubscriptionService) PollPending(ctx context.Context, registration string) (*PollResult, error) {
	reg, err := normalizeRegistration(registration)
	if err != nil {
		return nil, err
	}

	vehicle, err := s.vehicleRepo.FindByRegistration(ctx, reg)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, fmt.Errorf("%w: vehicle %s not subscribed", entity.ErrNotFound, reg)
	}

	details, err := s.vehicleRepo.ClaimPendingUpdate(ctx, reg)
	if err != nil {
		return nil, err
	}

	result := &PollResult{
		Registration:    reg,
		LastCheckedDate: vehicle.LastCheckedAt,
		LastMotTestDate: vehicle.BaselineTestDate,
	}

	if details != nil {
		result.HasUpdate = true
		result.Details = details
		result.UpdateDetectedAt = vehicle.PendingUpdateDetectedAt
	}

	return result, nil
}

// RegisterDevice upserts a device push subscription for a tracked vehicle.
func (s *SubscriptionService) RegisterDevice(ctx context.Context, registration, deviceID string, endpoint entity.PushEndpoint) error {
	reg, err := normalizeRegistration(registration)
	if err != nil {
		return err
	}

	if deviceID == "" {
		return fmt.Errorf("%w: deviceId is required", entity.ErrValidation)
	}
	if endpoint.URL == "" {
		return fmt.Errorf("%w: endpoint url is required", entity.ErrValidation)
	}

	vehicle, err := s.vehicleRepo.FindByRegistration(ctx, reg)
	if err != nil {
		return err
	}
	if vehicle == nil {
		return fmt.Errorf("%w: vehicle %s not subscribed", entity.ErrNotFound, reg)
	}

	sub := &entity.DeviceSubscription{
		Registration: reg,
		DeviceID:     deviceID,
		Endpoint:     endpoint,
		Active:       true,
	}

	if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Device registered", "registration", reg, "deviceId", deviceID)
	return nil
}

// RemoveDevice hard-deletes one device's subscription.
func (s *SubscriptionService) RemoveDevice(ctx context.Context, registration, deviceID string) error {
	reg, err := normalizeRegistration(registration)
	if err != nil {
		return err
	}

	if deviceID == "" {
		return fmt.Errorf("%w: deviceId is required", entity.ErrValidation)
	}

	return s.subscriptionRepo.Delete(ctx, reg, deviceID)
}

func normalizeRegistration(registration string) (string, error) {
	reg := utils.NormalizeRegistration(registration)
	if !utils.ValidRegistration(reg) {
		return "", fmt.Errorf("%w: invalid registration %q", entity.ErrValidation, registration)
	}
	return reg, nil
}
