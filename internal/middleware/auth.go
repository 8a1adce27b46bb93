package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grantforge/backend/internal/service"
	"k8s.io/klog/v2"
)

// ContextKeyName is the gin context key carrying the authenticated access
// key's name.
const ContextKeyName = "access_key_name"

// AccessKeyAuth verifies the access key on every request. Keys arrive as
// "Authorization: Bearer <key>" or in the X-API-Key header. Unknown and
// disabled keys get the same 401 so probing reveals nothing. When disabled
// the middleware passes everything through.
func AccessKeyAuth(enabled bool, keys service.AccessKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		plaintext := bearerToken(c)
		if plaintext == "" {
			plaintext = c.GetHeader("X-API-Key")
		}
		if plaintext == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing access key"})
			c.Abort()
			return
		}

		accessKey, err := keys.Authenticate(c.Request.Context(), plaintext)
		if err != nil {
			klog.V(6).Infof("access key rejected: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid access key"})
			c.Abort()
			return
		}

		c.Set(ContextKeyName, accessKey.Name)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
