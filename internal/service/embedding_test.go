package service

import (
	"math"
	"testing"
)

func TestReduceVectorTruncatesAndRenormalizes(t *testing.T) {
	vec := []float32{3, 4, 5, 6}

	reduced := reduceVector(vec, 2)
	if len(reduced) != 2 {
		t.Fatalf("Length: got %d, want 2", len(reduced))
	}

	// Unit length after truncation
	var norm float64
	for _, v := range reduced {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-6 {
		t.Errorf("Reduced vector not unit length: %f", math.Sqrt(norm))
	}

	// Direction preserved: 3:4 ratio
	ratio := reduced[0] / reduced[1]
	if math.Abs(float64(ratio)-0.75) > 1e-6 {
		t.Errorf("Direction changed: ratio %f, want 0.75", ratio)
	}
}

func TestReduceVectorNoopWhenShortEnough(t *testing.T) {
	vec := []float32{1, 2, 3}

	if got := reduceVector(vec, 3); len(got) != 3 || got[0] != 1 {
		t.Errorf("Exact-length vector should pass through unchanged: %v", got)
	}
	if got := reduceVector(vec, 10); len(got) != 3 {
		t.Errorf("Shorter vector should pass through unchanged: %v", got)
	}
	if got := reduceVector(vec, 0); len(got) != 3 {
		t.Errorf("Non-positive dim should pass through unchanged: %v", got)
	}
}

func TestReduceVectorZeroVector(t *testing.T) {
	vec := []float32{0, 0, 0, 0}
	reduced := reduceVector(vec, 2)
	if len(reduced) != 2 {
		t.Fatalf("Length: got %d, want 2", len(reduced))
	}
	for _, v := range reduced {
		if v != 0 {
			t.Errorf("Zero vector should stay zero, got %v", reduced)
		}
	}
}

func TestClampTopK(t *testing.T) {
	testCases := []struct {
		in   int
		want int
	}{
		{0, defaultTopK},
		{-5, defaultTopK},
		{1, 1},
		{50, 50},
		{maxTopK, maxTopK},
		{maxTopK + 1, maxTopK},
	}

	for _, tc := range testCases {
		if got := clampTopK(tc.in); got != tc.want {
			t.Errorf("clampTopK(%d): got %d, want %d", tc.in, got, tc.want)
		}
	}
}
