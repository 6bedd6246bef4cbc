package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/dto"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

type ambulanceService interface {
	List(ctx context.Context) ([]models.Ambulance, error)
	Get(ctx context.Context, id string) (*models.Ambulance, error)
	Create(ctx context.Context, req dto.CreateAmbulanceRequest, actor string) (*models.Ambulance, error)
	Assign(ctx context.Context, ambulanceID, reportID, actor string) (*models.Ambulance, error)
	Release(ctx context.Context, ambulanceID, actor string) (*models.Ambulance, error)
	SetMaintenance(ctx context.Context, ambulanceID, actor string) (*models.Ambulance, error)
	SetStatus(ctx context.Context, ambulanceID string, req dto.AmbulanceStatusRequest, actor string) (*models.Ambulance, error)
}

// AmbulanceHandler serves the fleet board.
type AmbulanceHandler struct {
	fleet ambulanceService
}

// NewAmbulanceHandler constructs the handler.
func NewAmbulanceHandler(fleet ambulanceService) *AmbulanceHandler {
	return &AmbulanceHandler{fleet: fleet}
}

// List godoc
// @Summary List ambulances
// @Tags Ambulances
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ambulances [get]
func (h *AmbulanceHandler) List(c *gin.Context) {
	items, err := h.fleet.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Ambulance detail
// @Tags Ambulances
// @Security BearerAuth
// @Produce json
// @Param id path string true "Ambulance ID"
// @Success 200 {object} response.Envelope
// @Router /ambulances/{id} [get]
func (h *AmbulanceHandler) Get(c *gin.Context) {
	item, err := h.fleet.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Register an ambulance
// @Tags Ambulances
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CreateAmbulanceRequest true "Ambulance payload"
// @Success 201 {object} response.Envelope
// @Router /ambulances [post]
func (h *AmbulanceHandler) Create(c *gin.Context) {
	var req dto.CreateAmbulanceRequest
	if !bindJSON(c, &req, "invalid ambulance payload") {
		return
	}
	item, err := h.fleet.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Assign godoc
// @Summary Put an ambulance on a report
// @Tags Ambulances
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Ambulance ID"
// @Param payload body dto.AssignReportRequest true "Report to serve"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /ambulances/{id}/assign [post]
func (h *AmbulanceHandler) Assign(c *gin.Context) {
	var req dto.AssignReportRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	if req.ReportID == "" {
		response.Error(c, appErrors.WithField(appErrors.ErrValidation, "reportId", "reportId is required"))
		return
	}
	item, err := h.fleet.Assign(c.Request.Context(), c.Param("id"), req.ReportID, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Release godoc
// @Summary Return an ambulance to Available
// @Tags Ambulances
// @Security BearerAuth
// @Produce json
// @Param id path string true "Ambulance ID"
// @Success 200 {object} response.Envelope
// @Router /ambulances/{id}/release [post]
func (h *AmbulanceHandler) Release(c *gin.Context) {
	item, err := h.fleet.Release(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Maintenance godoc
// @Summary Take an ambulance out of service
// @Tags Ambulances
// @Security BearerAuth
// @Produce json
// @Param id path string true "Ambulance ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /ambulances/{id}/maintenance [post]
func (h *AmbulanceHandler) Maintenance(c *gin.Context) {
	item, err := h.fleet.SetMaintenance(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// SetStatus godoc
// @Summary Set an ambulance status from the board
// @Tags Ambulances
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Ambulance ID"
// @Param payload body dto.AmbulanceStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /ambulances/{id}/status [post]
func (h *AmbulanceHandler) SetStatus(c *gin.Context) {
	var req dto.AmbulanceStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	item, err := h.fleet.SetStatus(c.Request.Context(), c.Param("id"), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
