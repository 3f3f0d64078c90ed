package usecase

import (
	"context"
	"errors"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"
	"motwatch-service/pkg/logger"
)

// NotificationDispatcher fans one detected update out to every active
// device subscribed to the vehicle.
type NotificationDispatcher struct {
	subscriptionRepo repository.SubscriptionRepository
	pushRepo         repository.PushRepository
	logRepo          repository.NotificationLogRepository
	logger           logger.Logger
}

// DispatchResult counts per-device delivery outcomes for one update.
type DispatchResult struct {
	Sent   int
	Failed int
}

// NewNotificationDispatcher creates a new dispatcher
func NewNotificationDispatcher(
	subscriptionRepo repository.SubscriptionRepository,
	pushRepo repository.PushRepository,
	logRepo repository.NotificationLogRepository,
	logger logger.Logger,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		subscriptionRepo: subscriptionRepo,
		pushRepo:         pushRepo,
		logRepo:          logRepo,
		logger:           logger,
	}
}

// Dispatch delivers the update to every active subscription. One device
// failing never stops delivery to the rest. A permanent failure (endpoint
// gone) deactivates the subscription; transient failures leave it active
// for the next cycle.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, registration string, details *entity.UpdateDetails) (DispatchResult, error) {
	var result DispatchResult

	subs, err := d.subscriptionRepo.FindActiveByVehicle(ctx, registration)
	if err != nil {
		return result, err
	}

	if len(subs) == 0 {
		d.logger.Info("No active device subscriptions", "registration", registration)
		d.record(ctx, registration, "", details, repository.DeliveryNoDevices, "")
		return result, nil
	}

	msg := &entity.PushMessage{
		Registration: registration,
		TestResult:   details.TestResult,
		PreviousDate: details.PreviousDate,
		NewDate:      details.NewDate,
		Vehicle:      details.Vehicle,
		TestDetails:  details.Defects,
	}

	for _, sub := range subs {
		err := d.pushRepo.Send(ctx, sub.Endpoint, msg)

		switch {
		case err == nil:
			result.Sent++
			if markErr := d.subscriptionRepo.MarkNotified(ctx, registration, sub.DeviceID, time.Now()); markErr != nil {
				d.logger.Warn("Failed to record notification time",
					"registration", registration,
					"deviceId", sub.DeviceID,
					"error", markErr)
			}
			d.record(ctx, registration, sub.DeviceID, details, repository.DeliverySent, "")

		case errors.Is(err, entity.ErrEndpointGone):
			result.Failed++
			d.logger.Warn("Push endpoint gone, deactivating subscription",
				"registration", registration,
				"deviceId", sub.DeviceID)
			if deactErr := d.subscriptionRepo.Deactivate(ctx, registration, sub.DeviceID); deactErr != nil {
				d.logger.Error("Failed to deactivate subscription",
					"registration", registration,
					"deviceId", sub.DeviceID,
					"error", deactErr)
			}
			d.record(ctx, registration, sub.DeviceID, details, repository.DeliveryGone, err.Error())

		default:
			result.Failed++
			d.logger.Error("Push delivery failed",
				"registration", registration,
				"deviceId", sub.DeviceID,
				"error", err)
			d.record(ctx, registration, sub.DeviceID, details, repository.DeliveryFailed, err.Error())
		}
	}

	return result, nil
}

// record appends to the delivery audit log. Best-effort: an audit write
// failure never fails the dispatch.
func (d *NotificationDispatcher) record(ctx context.Context, registration, deviceID string, details *entity.UpdateDetails, status, detail string) {
	log := &repository.NotificationLog{
		Registration: registration,
		DeviceID:     deviceID,
		TestResult:   details.TestResult,
		NewTestDate:  details.NewDate,
		Status:       status,
		Detail:       detail,
		SentAt:       time.Now(),
	}

	if err := d.logRepo.Record(ctx, log); err != nil {
		d.logger.Warn("Failed to write notification log",
			"registration", registration,
			"deviceId", deviceID,
			"error", err)
	}
}
