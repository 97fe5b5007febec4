// Package httpkit provides HTTP utilities including caller identity.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextTenantIDKey is the gin context key for the caller's tenant.
	ContextTenantIDKey = "tenantID"
	// ContextAPIKeyIDKey is the gin context key for the authenticating API key.
	ContextAPIKeyIDKey = "apiKeyID"
)

// Caller is the authenticated API client making a request.
type Caller struct {
	TenantID string
	APIKeyID string
}

// SetCaller stores the caller on the gin context.
func SetCaller(c *gin.Context, caller Caller) {
	c.Set(ContextTenantIDKey, caller.TenantID)
	c.Set(ContextAPIKeyIDKey, caller.APIKeyID)
}

// GetCaller extracts the caller set by the authentication middleware.
func GetCaller(c *gin.Context) (Caller, bool) {
	tenantID := c.GetString(ContextTenantIDKey)
	if tenantID == "" {
		return Caller{}, false
	}
	return Caller{TenantID: tenantID, APIKeyID: c.GetString(ContextAPIKeyIDKey)}, true
}

// MustGetCaller returns the caller or aborts with 401.
func MustGetCaller(c *gin.Context) (Caller, bool) {
	caller, ok := GetCaller(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return Caller{}, false
	}
	return caller, true
}
