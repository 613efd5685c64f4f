package repository

import (
	"context"
	"fmt"

	"github.com/dwang/embedcomp/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovieRepository handles movie catalog data operations.
type MovieRepository struct {
	db *gorm.DB
}

// NewMovieRepository creates a new MovieRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *MovieRepository: repository instance bound to db.
func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Upsert creates or updates a movie record keyed by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movie: movie record to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *MovieRepository) Upsert(ctx context.Context, movie *domain.Movie) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(movie).Error
}

// UpsertBatch creates or updates multiple movie records in one statement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movies: movie records to create or update.
// Returns:
//   - error: non-nil if the batch upsert fails.
func (r *MovieRepository) UpsertBatch(ctx context.Context, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&movies).Error
}

// GetByID retrieves a movie by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: movie ID.
// Returns:
//   - *domain.Movie: movie record if found.
//   - error: non-nil if lookup fails.
func (r *MovieRepository) GetByID(ctx context.Context, id string) (*domain.Movie, error) {
	var movie domain.Movie
	if err := r.db.WithContext(ctx).First(&movie, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetByIDs retrieves movies by a list of IDs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: list of movie IDs.
// Returns:
//   - []domain.Movie: matching movie records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	if len(ids) == 0 {
		return []domain.Movie{}, nil
	}
	var movies []domain.Movie
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("failed to get movies by IDs: %w", err)
	}
	return movies, nil
}

// List retrieves movies with pagination, ordered by title.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Movie: movie records in the requested page.
//   - error: non-nil if the query fails.
func (r *MovieRepository) List(ctx context.Context, limit, offset int) ([]domain.Movie, error) {
	var movies []domain.Movie
	if err := r.db.WithContext(ctx).
		Limit(limit).
		Offset(offset).
		Order("title ASC").
		Find(&movies).Error; err != nil {
		return nil, err
	}
	return movies, nil
}

// Count returns the total number of movies in the catalog.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of records.
//   - error: non-nil if the query fails.
func (r *MovieRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Movie{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
