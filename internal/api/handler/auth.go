package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/chainledger/internal/identity"
	"go.uber.org/zap"
)

// RequireScope returns a middleware that rejects requests without a valid
// bearer token carrying scope. A nil issuer disables the check.
func RequireScope(tokens *identity.TokenIssuer, scope string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			return
		}

		claims, err := tokens.Authorize(raw, scope)
		if err != nil {
			logger.Warn("rejected write token", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token not authorised for " + scope})
			return
		}
		c.Set("subject", claims.Subject)
		c.Next()
	}
}
