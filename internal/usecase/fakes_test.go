package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/domain/repository"
	"motwatch-service/pkg/logger"
	"motwatch-service/pkg/metrics"
)

// Shared metrics instance: promauto registers against the default registry,
// so the package creates it once for all tests.
var testMetrics = metrics.NewMetrics("motwatch_test")

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Fatal(msg string, keysAndValues ...interface{}) {}
func (l nopLogger) With(keysAndValues ...interface{}) logger.Logger {
	return l
}

// memVehicleRepo is an in-memory VehicleRepository with the same atomicity
// semantics as the Mongo implementation: every method takes the lock once,
// so claim is a true compare-and-clear.
type memVehicleRepo struct {
	mu       sync.Mutex
	vehicles map[string]*entity.TrackedVehicle
}

func newMemVehicleRepo() *memVehicleRepo {
	return &memVehicleRepo{vehicles: make(map[string]*entity.TrackedVehicle)}
}

func (r *memVehicleRepo) Create(ctx context.Context, vehicle *entity.TrackedVehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[vehicle.Registration]; ok {
		return nil
	}
	clone := *vehicle
	r.vehicles[vehicle.Registration] = &clone
	return nil
}

func (r *memVehicleRepo) FindByRegistration(ctx context.Context, registration string) (*entity.TrackedVehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[registration]
	if !ok {
		return nil, nil
	}
	clone := *v
	return &clone, nil
}

func (r *memVehicleRepo) ListEnabled(ctx context.Context) ([]*entity.TrackedVehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TrackedVehicle
	for _, v := range r.vehicles {
		if v.Enabled {
			clone := *v
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memVehicleRepo) RecordCheckOutcome(ctx context.Context, registration string, outcome *entity.CheckOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[registration]
	if !ok {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}
	v.LastCheckedAt = outcome.CheckedAt
	v.LastCheckError = outcome.CheckError
	if outcome.Update != nil {
		v.BaselineTestDate = outcome.NewBaseline
		v.PendingUpdate = true
		v.PendingUpdateDetails = outcome.Update
		detectedAt := outcome.CheckedAt
		v.PendingUpdateDetectedAt = &detectedAt
	}
	return nil
}

func (r *memVehicleRepo) SeedBaseline(ctx context.Context, registration string, baseline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[registration]
	if !ok {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}
	v.BaselineTestDate = &baseline
	v.LastCheckedAt = time.Now()
	return nil
}

func (r *memVehicleRepo) ClaimPendingUpdate(ctx context.Context, registration string) (*entity.UpdateDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[registration]
	if !ok || !v.PendingUpdate {
		return nil, nil
	}
	v.PendingUpdate = false
	return v.PendingUpdateDetails, nil
}

func (r *memVehicleRepo) Delete(ctx context.Context, registration string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[registration]; !ok {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}
	delete(r.vehicles, registration)
	return nil
}

type subKey struct {
	registration string
	deviceID     string
}

type memSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[subKey]*entity.DeviceSubscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: make(map[subKey]*entity.DeviceSubscription)}
}

func (r *memSubscriptionRepo) Upsert(ctx context.Context, sub *entity.DeviceSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *sub
	clone.Active = true
	r.subs[subKey{sub.Registration, sub.DeviceID}] = &clone
	return nil
}

func (r *memSubscriptionRepo) FindActiveByVehicle(ctx context.Context, registration string) ([]*entity.DeviceSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.DeviceSubscription
	for _, sub := range r.subs {
		if sub.Registration == registration && sub.Active {
			clone := *sub
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memSubscriptionRepo) Deactivate(ctx context.Context, registration, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[subKey{registration, deviceID}]; ok {
		sub.Active = false
	}
	return nil
}

func (r *memSubscriptionRepo) MarkNotified(ctx context.Context, registration, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[subKey{registration, deviceID}]; ok {
		sub.LastNotifiedAt = &at
	}
	return nil
}

func (r *memSubscriptionRepo) Delete(ctx context.Context, registration, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := subKey{registration, deviceID}
	if _, ok := r.subs[key]; !ok {
		return fmt.Errorf("%w: subscription %s/%s", entity.ErrNotFound, registration, deviceID)
	}
	delete(r.subs, key)
	return nil
}

func (r *memSubscriptionRepo) DeleteByVehicle(ctx context.Context, registration string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.subs {
		if key.registration == registration {
			delete(r.subs, key)
		}
	}
	return nil
}

func (r *memSubscriptionRepo) get(registration, deviceID string) *entity.DeviceSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[subKey{registration, deviceID}]; ok {
		clone := *sub
		return &clone
	}
	return nil
}

// fakeHistoryRepo returns a canned record or error per registration.
type fakeHistoryRepo struct {
	mu      sync.Mutex
	records map[string]*entity.VehicleRecord
	errs    map[string]error
	calls   int
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{
		records: make(map[string]*entity.VehicleRecord),
		errs:    make(map[string]error),
	}
}

func (r *fakeHistoryRepo) FetchHistory(ctx context.Context, registration string) (*entity.VehicleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.errs[registration]; ok {
		return nil, err
	}
	if record, ok := r.records[registration]; ok {
		return record, nil
	}
	return nil, fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
}

// fakePushRepo fails specific devices by endpoint URL.
type fakePushRepo struct {
	mu       sync.Mutex
	failWith map[string]error
	sent     []string
}

func newFakePushRepo() *fakePushRepo {
	return &fakePushRepo{failWith: make(map[string]error)}
}

func (r *fakePushRepo) Send(ctx context.Context, endpoint entity.PushEndpoint, msg *entity.PushMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failWith[endpoint.URL]; ok {
		return err
	}
	r.sent = append(r.sent, endpoint.URL)
	return nil
}

type memNotificationLogRepo struct {
	mu   sync.Mutex
	logs []*repository.NotificationLog
}

func (r *memNotificationLogRepo) Record(ctx context.Context, log *repository.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *memNotificationLogRepo) FindByRegistration(ctx context.Context, registration string, limit int) ([]*repository.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.NotificationLog
	for _, log := range r.logs {
		if log.Registration == registration {
			out = append(out, log)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
