package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dwang/embedcomp/internal/repository"
)

// MovieHandler handles movie catalog endpoints.
type MovieHandler struct {
	movieRepo *repository.MovieRepository
}

// NewMovieHandler creates a new movie handler.
// Parameters:
//   - movieRepo: movie repository instance.
// Returns:
//   - *MovieHandler: initialized handler.
func NewMovieHandler(movieRepo *repository.MovieRepository) *MovieHandler {
	return &MovieHandler{movieRepo: movieRepo}
}

// ListMovies handles GET /api/v1/movies.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MovieHandler) ListMovies(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	movies, err := h.movieRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list movies: " + err.Error(),
		})
		return
	}

	total, err := h.movieRepo.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count movies: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"movies": movies,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetMovie handles GET /api/v1/movies/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MovieHandler) GetMovie(c *gin.Context) {
	id := c.Param("id")

	movie, err := h.movieRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Movie not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get movie: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, movie)
}
