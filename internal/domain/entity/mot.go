package entity

import (
	"time"
)

// MOT test results as returned by the trade API.
const (
	TestResultPassed = "PASSED"
	TestResultFailed = "FAILED"
)

// Defect is a single reason-for-rejection or advisory on a test.
type Defect struct {
	Type string `bson:"type" json:"type"`
	Text string `bson:"text" json:"text"`
}

// MotTest is one completed test from the upstream history.
type MotTest struct {
	CompletedDate time.Time
	TestResult    string
	ExpiryDate    *time.Time
	TestNumber    string
	Defects       []Defect
}

// VehicleRecord is the upstream vehicle + test history response.
type VehicleRecord struct {
	Registration string
	Make         string
	Model        string
	Colour       string
	Tests        []MotTest
}

// LatestTest returns the test with the maximum completed date, or nil when
// the vehicle has no tests yet. Upstream does not define an order for tests
// sharing an identical date; the first such test in upstream order wins.
func (r *VehicleRecord) LatestTest() *MotTest {
	var latest *MotTest
	for i := range r.Tests {
		t := &r.Tests[i]
		if latest == nil || t.CompletedDate.After(latest.CompletedDate) {
			latest = t
		}
	}
	return latest
}

// Descriptor returns the display subset used in update snapshots and push
// payloads.
func (r *VehicleRecord) Descriptor() VehicleDescriptor {
	return VehicleDescriptor{
		Make:   r.Make,
		Model:  r.Model,
		Colour: r.Colour,
	}
}
