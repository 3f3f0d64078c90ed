package repository

import (
	"context"
	"time"
)

// NotificationLog is one delivery attempt, kept as an audit trail in the
// relational store.
type NotificationLog struct {
	ID           uint
	Registration string
	DeviceID     string
	TestResult   string
	NewTestDate  time.Time
	Status       string
	Detail       string
	SentAt       time.Time
	CreatedAt    time.Time
}

// Delivery attempt statuses.
const (
	DeliverySent      = "SENT"
	DeliveryFailed    = "FAILED"
	DeliveryGone      = "GONE"
	DeliveryNoDevices = "NO_DEVICES"
)

// NotificationLogRepository records delivery attempts. Writes are
// best-effort: the dispatcher logs failures here but never fails a
// delivery because the audit write failed.
type NotificationLogRepository interface {
	Record(ctx context.Context, log *NotificationLog) error
	FindByRegistration(ctx context.Context, registration string, limit int) ([]*NotificationLog, error)
}
