package entity

import (
	"time"
)

// PushEndpoint is the opaque delivery descriptor handed to us by the device.
// We never interpret it beyond forwarding it to the push relay.
type PushEndpoint struct {
	URL    string `bson:"url" json:"url"`
	P256DH string `bson:"p256dh" json:"p256dh"`
	Auth   string `bson:"auth" json:"auth"`
}

// DeviceSubscription links one device to one tracked vehicle. Delivery
// failures deactivate the subscription instead of deleting it, so the
// history of who was subscribed survives endpoint churn.
type DeviceSubscription struct {
	ID             string       `bson:"_id,omitempty"`
	Registration   string       `bson:"registration"`
	DeviceID       string       `bson:"deviceId"`
	Endpoint       PushEndpoint `bson:"endpoint"`
	Active         bool         `bson:"active"`
	LastNotifiedAt *time.Time   `bson:"lastNotifiedAt,omitempty"`
	CreatedAt      time.Time    `bson:"createdAt"`
	UpdatedAt      time.Time    `bson:"updatedAt"`
}

// PushMessage is the payload delivered to every subscribed device when a new
// test is detected.
type PushMessage struct {
	Registration string            `json:"registration"`
	TestResult   string            `json:"testResult"`
	PreviousDate *time.Time        `json:"previousDate,omitempty"`
	NewDate      time.Time         `json:"newDate"`
	Vehicle      VehicleDescriptor `json:"vehicle"`
	TestDetails  []Defect          `json:"testDetails,omitempty"`
}
