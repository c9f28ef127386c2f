package gps

import (
	"errors"
	"time"
)

// ErrNoPosition reports that a sample had no usable latitude/longitude and
// therefore yields no reading for this cycle. It is a routine outcome, not a
// fault: open-water outages and cold GPS starts produce it constantly.
var ErrNoPosition = errors.New("no position in sample")

// Sample carries the raw values extracted from one upstream fetch. Optional
// fields are nil when the corresponding path was missing or not numeric.
type Sample struct {
	Latitude         *float64
	Longitude        *float64
	Altitude         *float64  // meters
	SpeedOverGround  *float64  // m/s, as reported by Signal K
	CourseOverGround *float64  // radians true, as reported by Signal K
	Timestamp        time.Time // source-reported; zero when upstream omitted it
}

// Reading is one normalized GPS record, shaped to the gps_position table.
type Reading struct {
	BoatID           string    `json:"boat_id"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Altitude         *float64  `json:"altitude"`
	SpeedOverGround  *float64  `json:"speed_over_ground"`
	CourseOverGround *float64  `json:"course_over_ground"`
	Timestamp        time.Time `json:"timestamp"`
}

// Normalize builds a Reading from a raw sample. A reading exists only when
// both latitude and longitude were present and numeric; otherwise it returns
// ErrNoPosition and no record. When the source reported no timestamp the
// agent's clock is used, so downstream can still order the row.
func Normalize(s Sample, boatID string) (Reading, error) {
	if s.Latitude == nil || s.Longitude == nil {
		return Reading{}, ErrNoPosition
	}

	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return Reading{
		BoatID:           boatID,
		Latitude:         *s.Latitude,
		Longitude:        *s.Longitude,
		Altitude:         s.Altitude,
		SpeedOverGround:  s.SpeedOverGround,
		CourseOverGround: s.CourseOverGround,
		Timestamp:        ts,
	}, nil
}
