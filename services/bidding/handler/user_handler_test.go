package handler

import (
	"net/http"
	"testing"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// Test GetProfileHandler
func TestGetProfileHandler(t *testing.T) {
	t.Parallel()

	router, mockService := newTestRouter(t, http.MethodGet, "/users/profile", "bob",
		func(h *BiddingHandler) gin.HandlerFunc { return h.GetProfileHandler })
	mockService.EXPECT().GetProfile(gomock.Any(), "bob").
		Return(model.User{UserID: "bob", Name: "Bob", Roles: []string{model.RoleUser}, Active: true}, nil)

	status, resp := doJSON(t, router, http.MethodGet, "/users/profile", nil)
	require.Equal(t, http.StatusOK, status)
	data := resp["data"].(map[string]any)
	require.Equal(t, "bob", data["user_id"])
	require.Equal(t, true, data["active"])
}

// Test UpdateProfileHandler
func TestUpdateProfileHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func(m *MockBiddingServiceInterface)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:        "rename_keeps_email",
			requestBody: helpers.UpdateProfileRequest{Name: "Robert"},
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().SyncProfile(gomock.Any(), model.User{
					UserID: "bob",
					Name:   "Robert",
					Email:  "bob@example.com",
				}, fixedNow).Return(model.User{UserID: "bob", Name: "Robert", Email: "bob@example.com"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "profile updated successfully",
		},
		{
			name:        "new_email",
			requestBody: helpers.UpdateProfileRequest{Name: "Bob", Email: "robert@example.com"},
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().SyncProfile(gomock.Any(), model.User{
					UserID: "bob",
					Name:   "Bob",
					Email:  "robert@example.com",
				}, fixedNow).Return(model.User{UserID: "bob", Name: "Bob", Email: "robert@example.com"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "profile updated successfully",
		},
		{
			name:           "malformed_email",
			requestBody:    helpers.UpdateProfileRequest{Name: "Bob", Email: "not-an-email"},
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_name",
			requestBody:    map[string]any{"email": "bob@example.com"},
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			router, mockService := newTestRouter(t, http.MethodPut, "/users/profile", "bob",
				func(h *BiddingHandler) gin.HandlerFunc { return h.UpdateProfileHandler })
			tc.mockSetup(mockService)

			status, resp := doJSON(t, router, http.MethodPut, "/users/profile", tc.requestBody)
			require.Equal(t, tc.expectedStatus, status)
			require.Equal(t, tc.expectedMsg, resp["message"])
		})
	}
}

// Test the admin user endpoints
func TestAdminUserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list", func(t *testing.T) {
		t.Parallel()

		router, mockService := newTestRouter(t, http.MethodGet, "/users", "admin",
			func(h *BiddingHandler) gin.HandlerFunc { return h.ListUsersHandler })
		mockService.EXPECT().ListUsers(gomock.Any()).Return([]model.User{{UserID: "alice"}, {UserID: "bob"}}, nil)

		status, resp := doJSON(t, router, http.MethodGet, "/users", nil)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, resp["data"], 2)
	})

	t.Run("toggle", func(t *testing.T) {
		t.Parallel()

		router, mockService := newTestRouter(t, http.MethodPut, "/users/:id/toggle-status", "admin",
			func(h *BiddingHandler) gin.HandlerFunc { return h.ToggleUserStatusHandler })
		mockService.EXPECT().ToggleUserStatus(gomock.Any(), "bob", fixedNow).Return(model.User{UserID: "bob", Active: false}, nil)

		status, resp := doJSON(t, router, http.MethodPut, "/users/bob/toggle-status", nil)
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "user status updated", resp["message"])
		require.Equal(t, false, resp["data"].(map[string]any)["active"])
	})

	t.Run("toggle_unknown", func(t *testing.T) {
		t.Parallel()

		router, mockService := newTestRouter(t, http.MethodPut, "/users/:id/toggle-status", "admin",
			func(h *BiddingHandler) gin.HandlerFunc { return h.ToggleUserStatusHandler })
		mockService.EXPECT().ToggleUserStatus(gomock.Any(), "ghost", fixedNow).Return(model.User{}, biddingerrors.ErrUserNotFound)

		status, _ := doJSON(t, router, http.MethodPut, "/users/ghost/toggle-status", nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}
