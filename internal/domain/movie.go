package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MetadataMap is a custom type for storing opaque metadata columns as JSON in the database.
type MetadataMap map[string]string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the map.
//   - error: non-nil if marshaling fails.
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (m *MetadataMap) Scan(value interface{}) error {
	if value == nil {
		*m = MetadataMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan MetadataMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// Movie represents one record of the movie catalog.
// Loaded from the dataset CSV, immutable afterwards; the catalog table exists
// so search results can be enriched without round-tripping the vector store.
type Movie struct {
	ID               string      `gorm:"type:text;primaryKey" json:"id"`
	Title            string      `gorm:"type:text;not null" json:"title"`
	Overview         string      `gorm:"type:text;not null" json:"overview"`
	ReleaseDate      string      `gorm:"type:text" json:"release_date"`
	OriginalLanguage string      `gorm:"type:text" json:"original_language"`
	Metadata         MetadataMap `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Movie.
func (Movie) TableName() string {
	return "movies"
}
