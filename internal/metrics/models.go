package metrics

import "time"

// Metric selects the leaderboard sort key.
type Metric string

const (
	MetricEnergy      Metric = "energy"
	MetricDistance    Metric = "distance"
	MetricHeartRate   Metric = "heartRate"
	MetricElapsedTime Metric = "elapsedTime"
)

// Valid reports whether m names a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricEnergy, MetricDistance, MetricHeartRate, MetricElapsedTime:
		return true
	}
	return false
}

// Record is one immutable observation pushed by a device. Optional
// readings are nil when the device never reported them.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	HeartRate  *float64  `json:"heart_rate,omitempty"`
	EnergyKcal *float64  `json:"energy_kcal,omitempty"`
	DistanceM  *float64  `json:"distance_m,omitempty"`
	ElapsedSec float64   `json:"elapsed_sec"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot maps user id to that user's latest known record. Published
// snapshots are replaced wholesale, never mutated in place.
type Snapshot map[string]Record

// AggregateMetrics is the group-wide rollup over one snapshot.
type AggregateMetrics struct {
	TotalEnergyKcal  float64 `json:"total_energy_kcal"`
	TotalDistanceM   float64 `json:"total_distance_m"`
	AvgHeartRate     float64 `json:"avg_heart_rate"`
	ActiveCount      int     `json:"active_count"`
	ParticipantCount int     `json:"participant_count"`
}

type RankedEntry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Value  float64 `json:"value"`
}

// LeaderboardEntry is a ranked entry joined with display metadata.
type LeaderboardEntry struct {
	RankedEntry
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
