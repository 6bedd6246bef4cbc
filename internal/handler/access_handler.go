package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type accessService interface {
	Registry() *rbac.Registry
	Menu(role string) []models.MenuEntry
	Destination(ctx context.Context, userID, role string) string
}

// AccessHandler exposes the role registry and per-session navigation.
type AccessHandler struct {
	access accessService
}

// NewAccessHandler constructs the handler.
func NewAccessHandler(access accessService) *AccessHandler {
	return &AccessHandler{access: access}
}

// Registry godoc
// @Summary Role and menu registry
// @Tags Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access/registry [get]
func (h *AccessHandler) Registry(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.access.Registry().Snapshot(), nil)
}

// Menu godoc
// @Summary Menu visible to the session
// @Tags Access
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access/menu [get]
func (h *AccessHandler) Menu(c *gin.Context) {
	claims := claimsFromContext(c)
	role := string(rbac.NormalizeAccountRole(claims.Role))
	response.JSON(c, http.StatusOK, h.access.Menu(role), nil)
}

// Destination godoc
// @Summary Landing page for the session
// @Tags Access
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access/destination [get]
func (h *AccessHandler) Destination(c *gin.Context) {
	claims := claimsFromContext(c)
	page := h.access.Destination(c.Request.Context(), claims.UserID, claims.Role)
	response.JSON(c, http.StatusOK, gin.H{"destination": page}, nil)
}
