package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type preferenceService interface {
	Get(ctx context.Context, userID string) (*models.Preferences, error)
	Update(ctx context.Context, userID, role string, req dto.PreferencesRequest) (*models.Preferences, error)
}

// PreferenceHandler reads and writes per-user settings.
type PreferenceHandler struct {
	prefs preferenceService
}

// NewPreferenceHandler constructs the handler.
func NewPreferenceHandler(prefs preferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs}
}

// Get godoc
// @Summary Current user preferences
// @Tags Settings
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) Get(c *gin.Context) {
	prefs, err := h.prefs.Get(c.Request.Context(), claimsFromContext(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// Update godoc
// @Summary Update user preferences
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.PreferencesRequest true "Preferences"
// @Success 200 {object} response.Envelope
// @Router /preferences [put]
func (h *PreferenceHandler) Update(c *gin.Context) {
	var req dto.PreferencesRequest
	if !bindJSON(c, &req, "invalid preferences payload") {
		return
	}
	claims := claimsFromContext(c)
	prefs, err := h.prefs.Update(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}
