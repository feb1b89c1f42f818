package middleware

import (
	"net/http"

	"github.com/autoseo/backend/internal/infrastructure/auth"
	"github.com/autoseo/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// AdminTokenHeaderKey is the header carrying the operator token
const AdminTokenHeaderKey = "X-Admin-Token"

// AdminAuthMiddleware guards operator endpoints with a shared admin token.
// When no token is configured every request is refused.
func AdminAuthMiddleware(verifier *auth.AdminTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(AdminTokenHeaderKey)
		if !verifier.Verify(token) {
			requestID := c.GetString("request_id")
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, "Admin access denied", requestID))
			return
		}
		c.Next()
	}
}
