// Package model defines the shared types of the dashboard session: telemetry
// snapshots, wire envelopes, input events and configuration.
package model

import "fmt"

// GPSFix is the last known rover position. A nil coordinate means the fix is
// unavailable, which is distinct from zero.
type GPSFix struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Available reports whether both coordinates are known.
func (g GPSFix) Available() bool { return g.Lat != nil && g.Lon != nil }

// Environmental holds the rover's ambient sensor readings.
type Environmental struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// DetectionSummary is the result of one object detection pass.
type DetectionSummary struct {
	ObjectsCount int `json:"objects_count"`
}

// SystemStatus is the snapshot sent on connection_ack and updated by narrower messages afterwards.
type SystemStatus struct {
	NegativeEffect  bool          `json:"negative_effect"`
	ObjectDetection bool          `json:"object_detection"`
	GPS             GPSFix        `json:"gps"`
	Environmental   Environmental `json:"environmental"`
}

// Clone returns a deep copy; the pointer fields of the copy share nothing with s.
func (s SystemStatus) Clone() SystemStatus {
	out := s
	out.GPS.Lat = cloneFloat(s.GPS.Lat)
	out.GPS.Lon = cloneFloat(s.GPS.Lon)
	out.Environmental.Temperature = cloneFloat(s.Environmental.Temperature)
	out.Environmental.Humidity = cloneFloat(s.Environmental.Humidity)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

// Float returns a pointer to v, for building fixes and readings.
func Float(v float64) *float64 { return &v }

// ConnectionState is the lifecycle state of the controller channel.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Open
	Closing
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ConnectionEvent is emitted on every channel state transition.
// Err is set when the transition was caused by a transport failure.
type ConnectionEvent struct {
	State    ConnectionState
	Endpoint string
	Attempt  string
	Err      error
}

// Severity classifies a status line.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity maps a name to a Severity, defaulting to info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeveritySuccess, SeverityWarning, SeverityError:
		return Severity(s)
	default:
		return SeverityInfo
	}
}
