package intake

import (
	"context"
	"net/http"

	"matter_intake_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the caller's plaintext intake key.
const APIKeyHeader = "X-Intake-API-Key"

// KeyLookup resolves an active key by hash.
type KeyLookup interface {
	GetByHash(ctx context.Context, keyHash string) (APIKey, error)
}

// APIKeyAuthMiddleware validates the X-Intake-API-Key header
// and sets the caller on the gin context.
func APIKeyAuthMiddleware(keys KeyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		key, err := keys.GetByHash(c.Request.Context(), HashKey(apiKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		httpkit.SetCaller(c, httpkit.Caller{TenantID: key.TenantID, APIKeyID: key.ID})
		c.Next()
	}
}
