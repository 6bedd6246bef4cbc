package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/middleware"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actor is the name written to history, attribution and audit rows.
func actor(c *gin.Context) string {
	return claimsFromContext(c).Actor()
}

// bindJSON decodes the body into dest, answering 400 on failure.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dest, message)
}

func confirmParam(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}
