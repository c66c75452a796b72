package handlers

import (
	"net/http"

	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/services"
	"clinic_inventory_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// UserHandler serves admin user management.
type UserHandler struct {
	authService services.AuthService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(as services.AuthService) *UserHandler {
	return &UserHandler{authService: as}
}

// GetUsers lists accounts filtered by ?search= and ?role=.
func (h *UserHandler) GetUsers(c *gin.Context) {
	filters := models.UserFilters{Search: c.Query("search"), Role: c.Query("role")}
	users, err := h.authService.ListUsers(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch users.")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUserByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.authService.GetUserProfile(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch user.")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req services.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateUser: Failed to bind JSON")
		utils.RespondValidationFailed(c, err)
		return
	}
	user, err := h.authService.UpdateUser(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "Failed to update user.")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	callerID, _, _ := currentUser(c)
	if err := h.authService.DeleteUser(c.Request.Context(), id, callerID); err != nil {
		respondServiceError(c, err, "Failed to delete user.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
