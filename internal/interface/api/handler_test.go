package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"motwatch-service/internal/domain/entity"
	"motwatch-service/internal/usecase"
	"motwatch-service/pkg/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Fatal(msg string, keysAndValues ...interface{}) {}
func (l nopLogger) With(keysAndValues ...interface{}) logger.Logger {
	return l
}

type fakeVehicleRepo struct {
	mu       sync.Mutex
	vehicles map[string]*entity.TrackedVehicle
}

func newFakeVehicleRepo() *fakeVehicleRepo {
	return &fakeVehicleRepo{vehicles: make(map[string]*entity.TrackedVehicle)}
}

func (r *fakeVehicleRepo) Create(ctx context.Context, v *entity.TrackedVehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[v.Registration]; !ok {
		clone := *v
		r.vehicles[v.Registration] = &clone
	}
	return nil
}

func (r *fakeVehicleRepo) FindByRegistration(ctx context.Context, registration string) (*entity.TrackedVehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.vehicles[registration]; ok {
		clone := *v
		return &clone, nil
	}
	return nil, nil
}

func (r *fakeVehicleRepo) ListEnabled(ctx context.Context) ([]*entity.TrackedVehicle, error) {
	return nil, nil
}

func (r *fakeVehicleRepo) RecordCheckOutcome(ctx context.Context, registration string, outcome *entity.CheckOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[registration]
	if !ok {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}
	v.LastCheckedAt = outcome.CheckedAt
	if outcome.Update != nil {
		v.BaselineTestDate = outcome.NewBaseline
		v.PendingUpdate = true
		v.PendingUpdateDetails = outcome.Update
		at := outcome.CheckedAt
		v.PendingUpdateDetectedAt = &at
	}
	return nil
}

func (r *fakeVehicleRepo) SeedBaseline(ctx context.Context, registration string, baseline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.vehicles[registration]; ok {
		v.BaselineTestDate = &baseline
	}
	return nil
}

func (r *fakeVehicleRepo) ClaimPendingUpdate(ctx context.Context, registration string) (*entity.UpdateDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[registration]
	if !ok || !v.PendingUpdate {
		return nil, nil
	}
	v.PendingUpdate = false
	return v.PendingUpdateDetails, nil
}

func (r *fakeVehicleRepo) Delete(ctx context.Context, registration string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[registration]; !ok {
		return fmt.Errorf("%w: vehicle %s", entity.ErrNotFound, registration)
	}
	delete(r.vehicles, registration)
	return nil
}

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs map[string]*entity.DeviceSubscription
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[string]*entity.DeviceSubscription)}
}

func (r *fakeSubscriptionRepo) key(registration, deviceID string) string {
	return registration + "/" + deviceID
}

func (r *fakeSubscriptionRepo) Upsert(ctx context.Context, sub *entity.DeviceSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *sub
	clone.Active = true
	r.subs[r.key(sub.Registration, sub.DeviceID)] = &clone
	return nil
}

func (r *fakeSubscriptionRepo) FindActiveByVehicle(ctx context.Context, registration string) ([]*entity.DeviceSubscription, error) {
	return nil, nil
}

func (r *fakeSubscriptionRepo) Deactivate(ctx context.Context, registration, deviceID string) error {
	return nil
}

func (r *fakeSubscriptionRepo) MarkNotified(ctx context.Context, registration, deviceID string, at time.Time) error {
	return nil
}

func (r *fakeSubscriptionRepo) Delete(ctx context.Context, registration, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.key(registration, deviceID)
	if _, ok := r.subs[key]; !ok {
		return fmt.Errorf("%w: subscription %s", entity.ErrNotFound, key)
	}
	delete(r.subs, key)
	return nil
}

func (r *fakeSubscriptionRepo) DeleteByVehicle(ctx context.Context, registration string) error {
	return nil
}

type fakeHistoryRepo struct{}

func (fakeHistoryRepo) FetchHistory(ctx context.Context, registration string) (*entity.VehicleRecord, error) {
	return &entity.VehicleRecord{Registration: registration}, nil
}

func newTestServer() (*httptest.Server, *fakeVehicleRepo) {
	vehicles := newFakeVehicleRepo()
	service := usecase.NewSubscriptionService(vehicles, newFakeSubscriptionRepo(), fakeHistoryRepo{}, nopLogger{})
	handler := NewHandler(service, nopLogger{})
	return httptest.NewServer(NewRouter(handler)), vehicles
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestEnableNotification(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	resp := postJSON(t, server.URL+"/api/v1/enable-notification", `{"registration":"ab12 cde"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body successResponse
	decodeBody(t, resp, &body)
	if !body.Success {
		t.Errorf("body = %+v", body)
	}

	// Idempotent: second subscribe also succeeds
	resp = postJSON(t, server.URL+"/api/v1/enable-notification", `{"registration":"AB12CDE"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("re-subscribe status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEnableNotificationValidation(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	for _, body := range []string{`not json`, `{"registration":""}`, `{"registration":"!!"}`} {
		resp := postJSON(t, server.URL+"/api/v1/enable-notification", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}

		var errResp errorResponse
		decodeBody(t, resp, &errResp)
		if errResp.Error.Kind != "VALIDATION_ERROR" {
			t.Errorf("body %q: kind = %s", body, errResp.Error.Kind)
		}
		if errResp.Error.Timestamp == "" {
			t.Error("error body missing timestamp")
		}
	}
}

func TestDisableNotificationUnknownRegistration(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	resp := postJSON(t, server.URL+"/api/v1/disable-notification", `{"registration":"ZZ99ZZZ"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	var errResp errorResponse
	decodeBody(t, resp, &errResp)
	if errResp.Error.Kind != "NOT_FOUND" {
		t.Errorf("kind = %s", errResp.Error.Kind)
	}
}

func TestPendingNotificationsNotSubscribed(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/pending-notifications?registration=ZZ99ZZZ")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPendingNotificationsClaim(t *testing.T) {
	server, vehicles := newTestServer()
	defer server.Close()

	resp := postJSON(t, server.URL+"/api/v1/enable-notification", `{"registration":"AB12CDE"}`)
	resp.Body.Close()

	newDate := time.Date(2024, 7, 2, 14, 15, 0, 0, time.UTC)
	outcome := &entity.CheckOutcome{
		CheckedAt:   time.Now(),
		NewBaseline: &newDate,
		Update: &entity.UpdateDetails{
			NewDate:    newDate,
			TestResult: entity.TestResultPassed,
			Vehicle:    entity.VehicleDescriptor{Make: "FORD", Model: "FOCUS", Colour: "BLUE"},
		},
	}
	if err := vehicles.RecordCheckOutcome(context.Background(), "AB12CDE", outcome); err != nil {
		t.Fatalf("RecordCheckOutcome: %v", err)
	}

	pollURL := server.URL + "/api/v1/pending-notifications?registration=AB12CDE"

	first, err := http.Get(pollURL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var firstBody pollResponse
	decodeBody(t, first, &firstBody)
	if !firstBody.HasUpdate {
		t.Fatal("first poll should claim the update")
	}
	if firstBody.Details == nil || !firstBody.Details.NewDate.Equal(newDate) {
		t.Errorf("details = %+v", firstBody.Details)
	}

	second, err := http.Get(pollURL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var secondBody pollResponse
	decodeBody(t, second, &secondBody)
	if secondBody.HasUpdate {
		t.Error("second poll must observe no update")
	}
	if secondBody.LastCheckedDate.IsZero() {
		t.Error("no-update poll still returns lastCheckedDate")
	}
}

func TestDeviceSubscriptionLifecycle(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	// Registering against an untracked vehicle fails
	resp := postJSON(t, server.URL+"/api/v1/push-subscriptions",
		`{"registration":"AB12CDE","deviceId":"device-1","endpoint":{"url":"https://push.example/1"}}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before vehicle subscribe", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/v1/enable-notification", `{"registration":"AB12CDE"}`)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/v1/push-subscriptions",
		`{"registration":"AB12CDE","deviceId":"device-1","endpoint":{"url":"https://push.example/1"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete,
		server.URL+"/api/v1/push-subscriptions?registration=AB12CDE&deviceId=device-1", nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if del.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", del.StatusCode)
	}
	del.Body.Close()

	// Deleting again is 404
	del2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	if del2.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", del2.StatusCode)
	}
	del2.Body.Close()
}
