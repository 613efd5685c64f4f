package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/logger"
	"github.com/dwang/embedcomp/internal/storage"
)

// unknownValue replaces empty or missing optional fields so downstream
// consumers never see blanks.
const unknownValue = "Unknown"

// Column names the loader requires in the CSV header.
const (
	colID       = "id"
	colTitle    = "title"
	colOverview = "overview"
)

// Optional columns promoted to dedicated Movie fields. Everything else in the
// header lands in Movie.Metadata untouched.
const (
	colReleaseDate      = "release_date"
	colOriginalLanguage = "original_language"
)

// Loader reads movie records from CSV datasets.
type Loader struct{}

// NewLoader creates a new dataset Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFile reads movies from a local CSV file.
// Parameters:
//   - path: local filesystem path of the CSV file.
// Returns:
//   - []domain.Movie: parsed records in file order.
//   - error: *domain.DataSourceError if the file is missing or malformed.
func (l *Loader) LoadFile(path string) ([]domain.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.DataSourceError{Source: path, Err: err}
	}
	defer f.Close()

	movies, err := l.parse(f)
	if err != nil {
		return nil, &domain.DataSourceError{Source: path, Err: err}
	}
	return movies, nil
}

// LoadFromStorage reads movies from a CSV object in a storage bucket.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - store: object storage client.
//   - key: object key of the CSV file.
// Returns:
//   - []domain.Movie: parsed records in object order.
//   - error: *domain.DataSourceError if the object is missing or malformed.
func (l *Loader) LoadFromStorage(ctx context.Context, store storage.ObjectStorage, key string) ([]domain.Movie, error) {
	body, err := store.Download(ctx, key)
	if err != nil {
		return nil, &domain.DataSourceError{Source: key, Err: err}
	}
	defer body.Close()

	movies, err := l.parse(body)
	if err != nil {
		return nil, &domain.DataSourceError{Source: key, Err: err}
	}

	logger.CtxInfo(ctx, "Loaded %d movies from storage key %s", len(movies), key)
	return movies, nil
}

// parse decodes the CSV stream into movie records. Record order follows the
// input, so repeated loads of the same file produce identical slices.
func (l *Loader) parse(r io.Reader) ([]domain.Movie, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty dataset: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}

	for _, required := range []string{colID, colTitle, colOverview} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var movies []domain.Movie
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		movie, err := buildMovie(header, cols, record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		movies = append(movies, movie)
	}

	return movies, nil
}

func buildMovie(header []string, cols map[string]int, record []string) (domain.Movie, error) {
	id := fieldAt(record, cols[colID])
	if id == "" {
		return domain.Movie{}, fmt.Errorf("empty id")
	}

	title := cleanValue(fieldAt(record, cols[colTitle]))
	overview := fieldAt(record, cols[colOverview])
	if overview == "" {
		return domain.Movie{}, fmt.Errorf("movie %s: empty overview", id)
	}

	movie := domain.Movie{
		ID:               id,
		Title:            title,
		Overview:         overview,
		ReleaseDate:      unknownValue,
		OriginalLanguage: unknownValue,
		Metadata:         domain.MetadataMap{},
	}

	if idx, ok := cols[colReleaseDate]; ok {
		movie.ReleaseDate = cleanValue(fieldAt(record, idx))
	}
	if idx, ok := cols[colOriginalLanguage]; ok {
		movie.OriginalLanguage = cleanValue(fieldAt(record, idx))
	}

	for i, name := range header {
		key := strings.TrimSpace(strings.ToLower(name))
		switch key {
		case colID, colTitle, colOverview, colReleaseDate, colOriginalLanguage:
			continue
		}
		if i < len(record) {
			movie.Metadata[key] = cleanValue(record[i])
		}
	}

	return movie, nil
}

// fieldAt returns the field at idx, tolerating short rows.
func fieldAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// cleanValue substitutes the Unknown placeholder for blank values.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return unknownValue
	}
	return v
}
