package handlers

import (
	"net/http"

	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// RegisterUser handles user registration. The first account needs no token;
// later ones require an admin token.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req services.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "RegisterUser: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}

	_, role, _ := currentUser(c)
	user, err := h.authService.RegisterUser(c.Request.Context(), req, role)
	if err != nil {
		respondServiceError(c, err, "Failed to register user.")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// LoginUser handles user login.
func (h *AuthHandler) LoginUser(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "LoginUser: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}

	authResp, err := h.authService.LoginUser(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to login.")
		return
	}
	c.JSON(http.StatusOK, authResp)
}

// GetCurrentUser retrieves the profile of the currently authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated.", "Missing user ID in context"))
		return
	}
	user, err := h.authService.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve user profile.")
		return
	}
	c.JSON(http.StatusOK, user)
}

// LogoutUser is a no-op for stateless tokens; clients drop the token.
func (h *AuthHandler) LogoutUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
