package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dwang/embedcomp/internal/config"
	"github.com/dwang/embedcomp/internal/logger"
	"github.com/dwang/embedcomp/internal/service"
	"github.com/dwang/embedcomp/internal/storage"
)

// CompareHandler handles side-by-side comparison endpoints.
type CompareHandler struct {
	compareService *service.CompareService
	limits         config.CompareConfig
	store          storage.ObjectStorage // optional, enables report export
}

// NewCompareHandler creates a new compare handler.
// Parameters:
//   - compareService: comparison service instance.
//   - limits: request bounds (default/max top-k, timeout).
//   - store: object storage for report export; nil disables export.
// Returns:
//   - *CompareHandler: initialized handler.
func NewCompareHandler(compareService *service.CompareService, limits config.CompareConfig, store storage.ObjectStorage) *CompareHandler {
	return &CompareHandler{
		compareService: compareService,
		limits:         limits,
		store:          store,
	}
}

// compareRequest wraps the service request with API-only options.
type compareRequest struct {
	service.CompareRequest
	Export bool `json:"export"`
}

// Compare handles POST /api/v1/compare.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CompareHandler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	req.TopK = boundTopK(req.TopK, h.limits)

	ctx, cancel := requestContext(c, h.limits)
	defer cancel()

	report, err := h.compareService.Compare(ctx, &req.CompareRequest)
	if err != nil {
		writeError(c, err)
		return
	}

	// Export is best-effort: a storage failure never fails the comparison
	if req.Export && h.store != nil {
		if url, err := h.exportReport(ctx, report); err != nil {
			logger.CtxWarn(ctx, "Report export failed: compare_id=%s, error=%v", report.CompareID, err)
		} else {
			report.ReportURL = url
		}
	}

	c.JSON(http.StatusOK, report)
}

// exportReport writes the report JSON to object storage keyed by compare ID.
func (h *CompareHandler) exportReport(ctx context.Context, report *service.ComparisonReport) (string, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return "", err
	}

	key := "reports/" + report.CompareID + ".json"
	if err := h.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", err
	}
	return h.store.GetURL(key), nil
}
