package handler

import (
	"net/http"

	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// GetProfileHandler handles GET /users/profile
func (h *BiddingHandler) GetProfileHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "GetProfileHandler")
	if !ok {
		return
	}

	user, err := h.service.GetProfile(c.Request.Context(), caller.UserID)
	if err != nil {
		helpers.HandleServiceError(c, "GetProfileHandler", err, map[string]any{"user_id": caller.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "profile retrieved successfully")
}

// UpdateProfileHandler handles PUT /users/profile
func (h *BiddingHandler) UpdateProfileHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "UpdateProfileHandler")
	if !ok {
		return
	}

	var req helpers.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateProfileHandler", err)
		return
	}

	identity := caller
	identity.Name = req.Name
	if req.Email != "" {
		identity.Email = req.Email
	}

	user, err := h.service.SyncProfile(c.Request.Context(), identity, h.now())
	if err != nil {
		helpers.HandleServiceError(c, "UpdateProfileHandler", err, map[string]any{"user_id": caller.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "profile updated successfully")
}

// ListUsersHandler handles GET /users
func (h *BiddingHandler) ListUsersHandler(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		helpers.HandleServiceError(c, "ListUsersHandler", err, nil)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	utils.JSONResponse(c, http.StatusOK, users, "users retrieved successfully")
}

// ToggleUserStatusHandler handles PUT /users/:id/toggle-status
func (h *BiddingHandler) ToggleUserStatusHandler(c *gin.Context) {
	userID := c.Param("id")
	user, err := h.service.ToggleUserStatus(c.Request.Context(), userID, h.now())
	if err != nil {
		helpers.HandleServiceError(c, "ToggleUserStatusHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "user status updated")
	helpers.LogSuccess("ToggleUserStatusHandler", "user status updated", map[string]any{
		"user_id": userID,
		"active":  user.Active,
	})
}
