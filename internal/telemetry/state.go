// Package telemetry holds the dashboard's cache of the rover's latest known state.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/model"
)

// State is the latest system snapshot. Only the message dispatcher writes it;
// readers get deep copies.
type State struct {
	clock   clock.Clock
	mu      sync.RWMutex
	status  model.SystemStatus
	updated time.Time
}

// New returns an empty State: every reading unavailable, effects off.
// clk stamps Updated; nil means the wall clock.
func New(clk clock.Clock) *State {
	if clk == nil {
		clk = clock.Real{}
	}
	return &State{clock: clk}
}

// Replace overwrites the whole snapshot, including nulls.
func (s *State) Replace(st model.SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st.Clone()
	s.updated = s.clock.Now()
}

// Merge applies a partial update. Absent parts and null fields leave the cached
// values untouched.
func (s *State) Merge(u model.SensorUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.GPS != nil {
		mergeFloat(&s.status.GPS.Lat, u.GPS.Lat)
		mergeFloat(&s.status.GPS.Lon, u.GPS.Lon)
	}
	if u.Environmental != nil {
		mergeFloat(&s.status.Environmental.Temperature, u.Environmental.Temperature)
		mergeFloat(&s.status.Environmental.Humidity, u.Environmental.Humidity)
	}
	s.updated = s.clock.Now()
}

func mergeFloat(dst **float64, v *float64) {
	if v == nil {
		return
	}
	x := *v
	*dst = &x
}

// Current returns a copy of the latest snapshot.
func (s *State) Current() model.SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Clone()
}

// Updated returns when the snapshot last changed (zero if never).
func (s *State) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// FormatGPS renders a fix for display.
func FormatGPS(g model.GPSFix) string {
	if !g.Available() {
		return "GPS N/A"
	}
	return fmt.Sprintf("Lat: %.6f | Lon: %.6f", *g.Lat, *g.Lon)
}

// FormatEnvironmental renders temperature and humidity, each N/A when null.
func FormatEnvironmental(e model.Environmental) string {
	return fmt.Sprintf("Temperature: %s | Humidity: %s",
		formatReading(e.Temperature, "%.1f °C"), formatReading(e.Humidity, "%.1f %%"))
}

func formatReading(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}
