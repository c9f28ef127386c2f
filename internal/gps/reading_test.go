package gps

import (
	"errors"
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	ts := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sample  Sample
		want    Reading
		wantErr error
	}{
		{
			name: "full sample",
			sample: Sample{
				Latitude:         f(10.5),
				Longitude:        f(-20.25),
				Altitude:         f(3.1),
				SpeedOverGround:  f(3.2),
				CourseOverGround: f(1.57),
				Timestamp:        ts,
			},
			want: Reading{
				BoatID:           "REIMAGINED",
				Latitude:         10.5,
				Longitude:        -20.25,
				Altitude:         f(3.1),
				SpeedOverGround:  f(3.2),
				CourseOverGround: f(1.57),
				Timestamp:        ts,
			},
		},
		{
			name: "optional fields stay nil",
			sample: Sample{
				Latitude:        f(10.5),
				Longitude:       f(-20.25),
				SpeedOverGround: f(3.2),
				Timestamp:       ts,
			},
			want: Reading{
				BoatID:          "REIMAGINED",
				Latitude:        10.5,
				Longitude:       -20.25,
				SpeedOverGround: f(3.2),
				Timestamp:       ts,
			},
		},
		{
			name:    "missing latitude",
			sample:  Sample{Longitude: f(-20.25), Timestamp: ts},
			wantErr: ErrNoPosition,
		},
		{
			name:    "missing longitude",
			sample:  Sample{Latitude: f(10.5), Timestamp: ts},
			wantErr: ErrNoPosition,
		},
		{
			name:    "empty sample",
			sample:  Sample{},
			wantErr: ErrNoPosition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.sample, "REIMAGINED")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() unexpected error: %v", err)
			}
			assertReading(t, got, tt.want)
		})
	}
}

func TestNormalizeTimestampFallback(t *testing.T) {
	before := time.Now().UTC()
	got, err := Normalize(Sample{Latitude: f(1), Longitude: f(2)}, "b")
	if err != nil {
		t.Fatalf("Normalize() unexpected error: %v", err)
	}
	after := time.Now().UTC()

	if got.Timestamp.Before(before) || got.Timestamp.After(after) {
		t.Errorf("fallback timestamp %v outside [%v, %v]", got.Timestamp, before, after)
	}
}

func assertReading(t *testing.T, got, want Reading) {
	t.Helper()
	if got.BoatID != want.BoatID {
		t.Errorf("BoatID = %q, want %q", got.BoatID, want.BoatID)
	}
	if got.Latitude != want.Latitude || got.Longitude != want.Longitude {
		t.Errorf("position = (%v, %v), want (%v, %v)", got.Latitude, got.Longitude, want.Latitude, want.Longitude)
	}
	assertOpt(t, "Altitude", got.Altitude, want.Altitude)
	assertOpt(t, "SpeedOverGround", got.SpeedOverGround, want.SpeedOverGround)
	assertOpt(t, "CourseOverGround", got.CourseOverGround, want.CourseOverGround)
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
	}
}

func assertOpt(t *testing.T, field string, got, want *float64) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, fmtOpt(got), fmtOpt(want))
	case *got != *want:
		t.Errorf("%s = %v, want %v", field, *got, *want)
	}
}

func fmtOpt(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
