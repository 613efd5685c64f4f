package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwang/embedcomp/internal/dataset"
	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/logger"
	"github.com/dwang/embedcomp/internal/service"
)

// IndexHandler handles admin index build operations.
type IndexHandler struct {
	indexService *service.IndexService
	loader       *dataset.Loader
	datasetPath  string

	// Build job state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.BuildStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewIndexHandler creates a new index handler.
// Parameters:
//   - indexService: index build service instance.
//   - loader: dataset loader instance.
//   - datasetPath: local CSV path used when the request doesn't override it.
// Returns:
//   - *IndexHandler: initialized handler.
func NewIndexHandler(indexService *service.IndexService, loader *dataset.Loader, datasetPath string) *IndexHandler {
	return &IndexHandler{
		indexService: indexService,
		loader:       loader,
		datasetPath:  datasetPath,
	}
}

// BuildRequest represents the index build API request.
type BuildRequest struct {
	Model       string `json:"model" binding:"required"`
	Dimensions  int    `json:"dimensions" binding:"required"`
	DatasetPath string `json:"dataset_path"`
	Limit       int    `json:"limit"`
	Recreate    bool   `json:"recreate"`
}

// BuildStatusResponse represents the index build status.
type BuildStatusResponse struct {
	IsRunning     bool                `json:"is_running"`
	LastRunTime   string              `json:"last_run_time,omitempty"`
	LastRunStatus string              `json:"last_run_status,omitempty"`
	CurrentStats  *service.BuildStats `json:"current_stats,omitempty"`
}

// TriggerBuild handles POST /api/v1/admin/index.
// The build runs in the background; only one build may run at a time.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IndexHandler) TriggerBuild(c *gin.Context) {
	ctx := c.Request.Context()

	var req BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid build request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Build request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Index build is already running"})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	path := req.DatasetPath
	if path == "" {
		path = h.datasetPath
	}
	cfg := domain.Configuration{Model: req.Model, Dimension: req.Dimensions}

	logger.CtxInfo(ctx, "Starting index build: model=%s, dim=%d, dataset=%s, recreate=%v",
		req.Model, req.Dimensions, path, req.Recreate)

	// Run in the background so the build survives the HTTP request
	go h.runBuild(cfg, path, &service.BuildOptions{Limit: req.Limit, Recreate: req.Recreate})

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "Index build started",
		"model":      cfg.Model,
		"dimensions": cfg.Dimension,
	})
}

func (h *IndexHandler) runBuild(cfg domain.Configuration, path string, opts *service.BuildOptions) {
	ctx := context.Background()
	ctx = logger.SetComponent(ctx, "index-build")

	var stats *service.BuildStats
	movies, err := h.loader.LoadFile(path)
	if err == nil {
		stats, err = h.indexService.BuildIndex(ctx, cfg, movies, opts)
	}

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.CtxError(ctx, "Index build failed: model=%s, error=%v", cfg.Model, err)
	}
}

// GetBuildStatus handles GET /api/v1/admin/index/status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *IndexHandler) GetBuildStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := BuildStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
