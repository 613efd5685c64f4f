package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/dwang/embedcomp/internal/config"
)

// boundTopK applies the configured default and ceiling to a requested top-k.
// The services apply their own hard clamp afterwards.
func boundTopK(topK int, limits config.CompareConfig) int {
	if topK <= 0 {
		return limits.DefaultTopK
	}
	if limits.MaxTopK > 0 && topK > limits.MaxTopK {
		return limits.MaxTopK
	}
	return topK
}

// requestContext derives a deadline-bounded context when a request timeout is
// configured. The caller must invoke the returned cancel func.
func requestContext(c *gin.Context, limits config.CompareConfig) (context.Context, context.CancelFunc) {
	if limits.RequestTimeout <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), limits.RequestTimeout)
}
