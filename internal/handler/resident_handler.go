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

type residentService interface {
	Register(ctx context.Context, req dto.ResidentRegistrationRequest, actor string) (*models.Resident, error)
	List(ctx context.Context, query dto.ResidentQuery) ([]models.Resident, int, error)
	Get(ctx context.Context, id string) (*models.Resident, error)
	Update(ctx context.Context, id string, req dto.ResidentUpdateRequest, actor string) (*models.Resident, error)
	Delete(ctx context.Context, id string, confirm bool, actor string) error
	ResetPassword(ctx context.Context, id string, req dto.ResetPasswordRequest, actor string) error
}

// ResidentHandler serves resident management.
type ResidentHandler struct {
	residents residentService
}

// NewResidentHandler constructs the handler.
func NewResidentHandler(residents residentService) *ResidentHandler {
	return &ResidentHandler{residents: residents}
}

// List godoc
// @Summary List residents
// @Tags Residents
// @Security BearerAuth
// @Produce json
// @Param q query string false "Search text"
// @Param status query string false "all, active, inactive or pending"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /residents [get]
func (h *ResidentHandler) List(c *gin.Context) {
	var query dto.ResidentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, total, err := h.residents.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	page, size := query.Page, query.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	response.JSON(c, http.StatusOK, items, &response.Pagination{Page: page, PageSize: size, TotalCount: total})
}

// Create godoc
// @Summary Register a resident directly
// @Tags Residents
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.ResidentRegistrationRequest true "Resident payload"
// @Success 201 {object} response.Envelope
// @Router /residents [post]
func (h *ResidentHandler) Create(c *gin.Context) {
	var req dto.ResidentRegistrationRequest
	if !bindJSON(c, &req, "invalid resident payload") {
		return
	}
	resident, err := h.residents.Register(c.Request.Context(), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resident)
}

// Get godoc
// @Summary Resident detail
// @Tags Residents
// @Security BearerAuth
// @Produce json
// @Param id path string true "Resident ID"
// @Success 200 {object} response.Envelope
// @Router /residents/{id} [get]
func (h *ResidentHandler) Get(c *gin.Context) {
	resident, err := h.residents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resident, nil)
}

// Update godoc
// @Summary Edit a resident
// @Tags Residents
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Resident ID"
// @Param payload body dto.ResidentUpdateRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /residents/{id} [put]
func (h *ResidentHandler) Update(c *gin.Context) {
	var req dto.ResidentUpdateRequest
	if !bindJSON(c, &req, "invalid resident payload") {
		return
	}
	resident, err := h.residents.Update(c.Request.Context(), c.Param("id"), req, actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resident, nil)
}

// Delete godoc
// @Summary Delete a resident
// @Tags Residents
// @Security BearerAuth
// @Param id path string true "Resident ID"
// @Param confirm query bool true "Must be true"
// @Success 204
// @Failure 428 {object} response.Envelope
// @Router /residents/{id} [delete]
func (h *ResidentHandler) Delete(c *gin.Context) {
	if err := h.residents.Delete(c.Request.Context(), c.Param("id"), confirmParam(c), actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ResetPassword godoc
// @Summary Reset a resident password
// @Tags Residents
// @Security BearerAuth
// @Accept json
// @Param id path string true "Resident ID"
// @Param payload body dto.ResetPasswordRequest true "New password"
// @Success 204
// @Failure 428 {object} response.Envelope
// @Router /residents/{id}/reset-password [post]
func (h *ResidentHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !bindJSON(c, &req, "invalid reset password payload") {
		return
	}
	if err := h.residents.ResetPassword(c.Request.Context(), c.Param("id"), req, actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
