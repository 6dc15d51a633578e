// Package auth resolves the calling tenant from the X-API-Key header.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the caller's key on every authenticated request.
const HeaderAPIKey = "X-API-Key"

const tenantCtxKey = "tenant_id"

// APIKeyMiddleware maps X-API-Key to a tenant and aborts with 401 when the key
// is missing or unknown. keys is apiKey -> tenantID, as loaded by config.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderAPIKey})
			return
		}
		tenantID, ok := keys[apiKey]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(tenantCtxKey, tenantID)
		c.Next()
	}
}

// TenantID returns the tenant set by APIKeyMiddleware, or "" outside it.
func TenantID(c *gin.Context) string {
	return c.GetString(tenantCtxKey)
}
