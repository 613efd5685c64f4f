package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dwang/embedcomp/internal/config"
	"github.com/dwang/embedcomp/internal/service"
)

// SearchHandler handles single-configuration search endpoints.
type SearchHandler struct {
	searchService *service.SearchService
	limits        config.CompareConfig
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
//   - limits: request bounds (default/max top-k, timeout).
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService, limits config.CompareConfig) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		limits:        limits,
	}
}

// Search handles POST /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	var req service.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	req.TopK = boundTopK(req.TopK, h.limits)

	ctx, cancel := requestContext(c, h.limits)
	defer cancel()

	result, err := h.searchService.Search(ctx, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SearchGet handles GET /api/v1/search for simple queries.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchGet(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	req := service.SearchRequest{
		Query: query,
		Model: c.Query("model"),
	}

	if dims := c.Query("dimensions"); dims != "" {
		if n, err := strconv.Atoi(dims); err == nil {
			req.Dimensions = n
		}
	}
	if topK := c.Query("top_k"); topK != "" {
		if n, err := strconv.Atoi(topK); err == nil {
			req.TopK = n
		}
	}
	req.TopK = boundTopK(req.TopK, h.limits)

	ctx, cancel := requestContext(c, h.limits)
	defer cancel()

	result, err := h.searchService.Search(ctx, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
