package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context) (*models.DashboardSummary, error)
}

type recentNotifications interface {
	Recent() []models.Notification
}

// DashboardHandler wires the dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service       dashboardService
	notifications recentNotifications
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, notifications recentNotifications) *DashboardHandler {
	return &DashboardHandler{service: service, notifications: notifications}
}

// Summary godoc
// @Summary Dashboard counters and chart series
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Notifications godoc
// @Summary Recent new-report notifications
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *DashboardHandler) Notifications(c *gin.Context) {
	items := []models.Notification{}
	if h.notifications != nil {
		items = h.notifications.Recent()
	}
	response.JSON(c, http.StatusOK, items, nil)
}
