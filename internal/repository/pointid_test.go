package repository

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

// TestPointIDForDeterministic verifies that the same movie ID always maps to
// the same point ID, so re-indexing overwrites instead of duplicating.
func TestPointIDForDeterministic(t *testing.T) {
	testCases := []string{"42", "tt0111161", "movie-abc", "0"}

	for _, id := range testCases {
		t.Run(id, func(t *testing.T) {
			p1 := PointIDFor(id)
			p2 := PointIDFor(id)
			if p1.String() != p2.String() {
				t.Errorf("Point ID not deterministic: %s != %s", p1, p2)
			}
		})
	}
}

func TestPointIDForNumeric(t *testing.T) {
	p := PointIDFor("12345")
	num, ok := p.PointIdOptions.(*pb.PointId_Num)
	if !ok {
		t.Fatalf("Numeric movie ID should map to numeric point ID, got %T", p.PointIdOptions)
	}
	if num.Num != 12345 {
		t.Errorf("Expected 12345, got %d", num.Num)
	}
}

func TestPointIDForNonNumeric(t *testing.T) {
	p := PointIDFor("tt0111161")
	uid, ok := p.PointIdOptions.(*pb.PointId_Uuid)
	if !ok {
		t.Fatalf("Non-numeric movie ID should map to UUID point ID, got %T", p.PointIdOptions)
	}
	if len(uid.Uuid) != 36 {
		t.Errorf("Invalid UUID length: got %d, want 36", len(uid.Uuid))
	}

	other := PointIDFor("tt0111162")
	if other.String() == p.String() {
		t.Error("Different movie IDs should map to different point IDs")
	}
}
