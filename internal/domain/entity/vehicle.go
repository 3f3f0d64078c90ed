// internal/domain/entity/vehicle.go
package entity

import (
	"time"
)

// TrackedVehicle is the per-registration tracking record. The normalized
// registration is the document id, so all scheduler and claim updates are
// single-document operations.
type TrackedVehicle struct {
	Registration            string         `bson:"_id"`
	Enabled                 bool           `bson:"enabled"`
	BaselineTestDate        *time.Time     `bson:"baselineTestDate,omitempty"`
	LastCheckedAt           time.Time      `bson:"lastCheckedAt"`
	LastCheckError          string         `bson:"lastCheckError,omitempty"`
	PendingUpdate           bool           `bson:"pendingUpdate"`
	PendingUpdateDetails    *UpdateDetails `bson:"pendingUpdateDetails,omitempty"`
	PendingUpdateDetectedAt *time.Time     `bson:"pendingUpdateDetectedAt,omitempty"`
	CreatedAt               time.Time      `bson:"createdAt"`
	UpdatedAt               time.Time      `bson:"updatedAt"`
}

// VehicleDescriptor is the display subset of the upstream vehicle record.
type VehicleDescriptor struct {
	Make   string `bson:"make" json:"make"`
	Model  string `bson:"model" json:"model"`
	Colour string `bson:"colour" json:"color"`
}

// UpdateDetails is the snapshot taken when a new test is detected. It is
// embedded in the vehicle document while the update is pending and handed
// out once by the claim protocol.
type UpdateDetails struct {
	PreviousDate *time.Time        `bson:"previousDate,omitempty" json:"previousDate,omitempty"`
	NewDate      time.Time         `bson:"newDate" json:"newDate"`
	TestResult   string            `bson:"testResult" json:"testResult"`
	ExpiryDate   *time.Time        `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	Defects      []Defect          `bson:"defects,omitempty" json:"defects,omitempty"`
	Vehicle      VehicleDescriptor `bson:"vehicle" json:"vehicle"`
}

// CheckOutcome is what one scheduler pass over one vehicle writes back.
// LastCheckedAt is always set; NewBaseline and Update are only set when the
// detector classified the pass as an update.
type CheckOutcome struct {
	CheckedAt   time.Time
	CheckError  string
	NewBaseline *time.Time
	Update      *UpdateDetails
}
