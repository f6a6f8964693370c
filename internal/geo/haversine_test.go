package geo

import "testing"

func TestHaversineMeters_OneHundredthDegreeLatitude(t *testing.T) {
	d := HaversineMeters(40.0, -75.0, 40.01, -75.0)
	if d < 1100 || d > 1125 {
		t.Fatalf("expected ~1112m, got %v", d)
	}
}

func TestHaversineMeters_SamePointIsZero(t *testing.T) {
	d := HaversineMeters(40.0, -75.0, 40.0, -75.0)
	if d != 0 {
		t.Fatalf("expected 0, got %v", d)
	}
}
