package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dwang/embedcomp/internal/domain"
)

// writeError maps failure kinds onto HTTP statuses and writes the JSON body.
// Every response carries the error text plus a stable kind string clients can
// branch on.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	var cfgErr *domain.ConfigurationError
	var dsErr *domain.DataSourceError
	var provErr *domain.IndexProvisioningError
	var upsertErr *domain.UpsertError
	var queryErr *domain.QueryError
	var timeoutErr *domain.TimeoutError

	switch {
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
		kind = "configuration"
	case errors.As(err, &dsErr):
		status = http.StatusNotFound
		kind = "data_source"
	case errors.As(err, &timeoutErr):
		status = http.StatusGatewayTimeout
		kind = "timeout"
	case errors.As(err, &provErr):
		status = http.StatusBadGateway
		kind = "index_provisioning"
	case errors.As(err, &upsertErr):
		status = http.StatusBadGateway
		kind = "upsert"
	case errors.As(err, &queryErr):
		kind = "query"
		switch {
		case queryErr.Collection == "":
			// Request-level problems like an empty query text
			status = http.StatusBadRequest
		case queryErr.Err == nil:
			// Policy errors like an unindexed collection, not transport
			status = http.StatusConflict
		default:
			status = http.StatusBadGateway
		}
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  kind,
	})
}
