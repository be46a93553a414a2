package middleware

import (
	"net/http"
	"strings"

	"slate/internal/core/services"
	apperrors "slate/pkg/errors"

	"github.com/gin-gonic/gin"
)

// IdentityContextKey is where AuthMiddleware stores the resolved identity.
const IdentityContextKey = "identity"

// AuthMiddleware guards plain HTTP endpoints (stats, admin reads) with the
// same token verification the gateway uses.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apperrors.NewAuthError(apperrors.ErrCodeAuthMissing, "authorization header required").ToWire())
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				apperrors.NewAuthError(apperrors.ErrCodeAuthInvalid, "invalid authorization header format").ToWire())
			return
		}

		identity, err := authService.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			appErr := apperrors.GetAppError(err)
			if appErr == nil {
				appErr = apperrors.NewAuthError(apperrors.ErrCodeAuthFailed, "authentication failed")
			}
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToWire())
			return
		}

		c.Set(IdentityContextKey, identity)
		c.Next()
	}
}
