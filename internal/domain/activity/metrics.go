// Package activity owns the cumulative metrics of a tracking session.
package activity

import (
	"fmt"
	"math"
)

// Source identifies where step events come from.
type Source string

const (
	SourceSensor    Source = "sensor"
	SourceSimulated Source = "simulated"
)

func (s Source) String() string { return string(s) }

// Metrics is the mutable state of a session. Only the Accumulator writes it.
type Metrics struct {
	Steps          uint64
	DistanceMeters float64
	Calories       float64
	ActiveSeconds  uint64
	ElapsedSeconds uint64
	HeartRateBpm   uint32
}

// Snapshot is a read-only copy of Metrics plus the values derived from it.
type Snapshot struct {
	Steps          uint64  `json:"steps"`
	DailyGoal      uint64  `json:"daily_goal"`
	DistanceMeters float64 `json:"distance_meters"`
	DistanceKm     float64 `json:"distance_km"`
	Calories       float64 `json:"calories"`
	ActiveSeconds  uint64  `json:"active_seconds"`
	ElapsedSeconds uint64  `json:"elapsed_seconds"`
	HeartRateBpm   uint32  `json:"heart_rate_bpm"`
	PercentOfGoal  float64 `json:"percent_of_goal"`
	PaceKmh        float64 `json:"pace_kmh"`
	Source         Source  `json:"source"`
}

func newSnapshot(m Metrics, goal uint64, src Source) Snapshot {
	s := Snapshot{
		Steps:          m.Steps,
		DailyGoal:      goal,
		DistanceMeters: m.DistanceMeters,
		DistanceKm:     m.DistanceMeters / 1000,
		Calories:       m.Calories,
		ActiveSeconds:  m.ActiveSeconds,
		ElapsedSeconds: m.ElapsedSeconds,
		HeartRateBpm:   m.HeartRateBpm,
		Source:         src,
	}
	if goal > 0 {
		s.PercentOfGoal = float64(m.Steps) / float64(goal) * 100
	}
	// Pace is undefined until the first active second; report zero.
	if m.ActiveSeconds > 0 {
		s.PaceKmh = s.DistanceKm / (float64(m.ActiveSeconds) / 3600)
	}
	return s
}

// RoundedPercent returns PercentOfGoal rounded half away from zero.
func (s Snapshot) RoundedPercent() int {
	return int(math.Round(s.PercentOfGoal))
}

// ElapsedClock renders ElapsedSeconds as HH:MM:SS.
func (s Snapshot) ElapsedClock() string {
	h := s.ElapsedSeconds / 3600
	m := (s.ElapsedSeconds % 3600) / 60
	sec := s.ElapsedSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// ActiveMinutes returns the whole minutes of active time.
func (s Snapshot) ActiveMinutes() uint64 {
	return s.ActiveSeconds / 60
}
