package handler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/dwang/embedcomp/internal/domain"
	"github.com/dwang/embedcomp/internal/service"
)

// ConfigurationHandler exposes the registered embedding configurations.
type ConfigurationHandler struct {
	registry *service.Registry
}

// NewConfigurationHandler creates a new configuration handler.
// Parameters:
//   - registry: embedding configuration registry.
// Returns:
//   - *ConfigurationHandler: initialized handler.
func NewConfigurationHandler(registry *service.Registry) *ConfigurationHandler {
	return &ConfigurationHandler{registry: registry}
}

type configurationInfo struct {
	Model           string `json:"model"`
	Dimension       int    `json:"dimension"`
	NativeDimension int    `json:"native_dimension,omitempty"`
	Description     string `json:"description,omitempty"`
	Collection      string `json:"collection"`
}

// ListConfigurations handles GET /api/v1/configurations.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ConfigurationHandler) ListConfigurations(c *gin.Context) {
	configs := h.registry.Configurations()
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].Model != configs[j].Model {
			return configs[i].Model < configs[j].Model
		}
		return configs[i].Dimension < configs[j].Dimension
	})

	infos := make([]configurationInfo, len(configs))
	for i, cfg := range configs {
		info := configurationInfo{
			Model:      cfg.Model,
			Dimension:  cfg.Dimension,
			Collection: h.registry.CollectionFor(cfg),
		}
		if known, ok := domain.KnownModels[cfg.Model]; ok {
			info.NativeDimension = known.NativeDimension
			info.Description = known.Description
		}
		infos[i] = info
	}

	c.JSON(http.StatusOK, gin.H{
		"configurations": infos,
		"total":          len(infos),
	})
}
