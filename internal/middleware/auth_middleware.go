package middleware

import (
	"net/http"
	"strings"

	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

func bearerToken(c *gin.Context) (string, *utils.APIError) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", "")
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid authorization header format. Use Bearer <token>", "")
	}
	return parts[1], nil
}

func setClaims(c *gin.Context, claims *utils.Claims) {
	c.Set("userID", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("userRole", claims.Role)
}

// AuthMiddleware rejects requests without a valid bearer token signed with secret.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, apiErr := bearerToken(c)
		if apiErr != nil {
			utils.RespondWithError(c, apiErr)
			return
		}

		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the claims when a valid token is present and
// lets anonymous requests through. A malformed or invalid token is still rejected.
func OptionalAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		tokenString, apiErr := bearerToken(c)
		if apiErr != nil {
			utils.RespondWithError(c, apiErr)
			return
		}
		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// RoleAuthMiddleware creates a Gin middleware for role-based authorization.
// It checks if the user role (from JWT claims) is one of the allowed roles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString("userRole")
		if roleStr == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "User role not found in token claims.", ""))
			return
		}

		for _, r := range allowedRoles {
			if strings.EqualFold(roleStr, r) {
				c.Next()
				return
			}
		}

		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			"You do not have permission to access this resource.", "Required roles: "+strings.Join(allowedRoles, ", ")))
	}
}
