package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dwang/embedcomp/internal/domain"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test CSV: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeCSV(t, `id,title,overview,release_date,original_language,vote_average
1,The Haunting,A ghost story in an old mansion,1999-07-23,en,6.5
2,Ghost Ship,A haunted vessel adrift at sea,2002-10-25,en,5.6
3,Funny Times,A light comedy about friendship,,,
`)

	loader := NewLoader()
	movies, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if len(movies) != 3 {
		t.Fatalf("Expected 3 movies, got %d", len(movies))
	}

	first := movies[0]
	if first.ID != "1" || first.Title != "The Haunting" {
		t.Errorf("Unexpected first record: %+v", first)
	}
	if first.ReleaseDate != "1999-07-23" || first.OriginalLanguage != "en" {
		t.Errorf("Optional fields not parsed: %+v", first)
	}
	if first.Metadata["vote_average"] != "6.5" {
		t.Errorf("Extra column not captured in metadata: %+v", first.Metadata)
	}

	// Blank optional fields become Unknown
	third := movies[2]
	if third.ReleaseDate != "Unknown" {
		t.Errorf("Blank release_date should be Unknown, got %q", third.ReleaseDate)
	}
	if third.OriginalLanguage != "Unknown" {
		t.Errorf("Blank original_language should be Unknown, got %q", third.OriginalLanguage)
	}
	if third.Metadata["vote_average"] != "Unknown" {
		t.Errorf("Blank metadata should be Unknown, got %q", third.Metadata["vote_average"])
	}
}

func TestLoadFileDeterministicOrder(t *testing.T) {
	path := writeCSV(t, `id,title,overview
10,B Movie,Second overview
2,A Movie,First overview
30,C Movie,Third overview
`)

	loader := NewLoader()
	first, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	second, err := loader.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("Repeated loads differ in length: %d != %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("Record order differs at %d: %s != %s", i, first[i].ID, second[i].ID)
		}
	}
	// File order is preserved, not sorted
	if first[0].ID != "10" || first[1].ID != "2" || first[2].ID != "30" {
		t.Errorf("File order not preserved: %v", []string{first[0].ID, first[1].ID, first[2].ID})
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadFile(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	var dsErr *domain.DataSourceError
	if !errors.As(err, &dsErr) {
		t.Errorf("Expected DataSourceError, got %T", err)
	}
}

func TestLoadFileMissingRequiredColumn(t *testing.T) {
	testCases := []struct {
		name   string
		header string
	}{
		{name: "missing overview", header: "id,title,release_date"},
		{name: "missing id", header: "title,overview"},
		{name: "missing title", header: "id,overview"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeCSV(t, tc.header+"\n")
			loader := NewLoader()
			_, err := loader.LoadFile(path)
			if err == nil {
				t.Fatal("Expected error for missing required column")
			}
			var dsErr *domain.DataSourceError
			if !errors.As(err, &dsErr) {
				t.Errorf("Expected DataSourceError, got %T", err)
			}
		})
	}
}

func TestLoadFileEmptyOverviewRejected(t *testing.T) {
	path := writeCSV(t, `id,title,overview
1,Some Movie,
`)
	loader := NewLoader()
	_, err := loader.LoadFile(path)
	if err == nil {
		t.Fatal("Expected error for empty overview")
	}
	var dsErr *domain.DataSourceError
	if !errors.As(err, &dsErr) {
		t.Errorf("Expected DataSourceError, got %T", err)
	}
}

func TestCleanValue(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"", "Unknown"},
		{"   ", "Unknown"},
		{"nan", "Unknown"},
		{"NaN", "Unknown"},
		{"null", "Unknown"},
		{"en", "en"},
		{" 2001-01-01 ", "2001-01-01"},
	}

	for _, tc := range testCases {
		if got := cleanValue(tc.in); got != tc.want {
			t.Errorf("cleanValue(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
