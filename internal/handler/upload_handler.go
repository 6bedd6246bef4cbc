package handler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/service"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
	"github.com/isagip/barangay-dashboard-api/pkg/storage"
)

type uploadService interface {
	Save(ctx context.Context, owner, filename string, size int64, r io.Reader) (*service.UploadResult, error)
	Open(token string) (*os.File, storage.Grant, error)
}

// UploadHandler accepts report photos and registration proofs.
type UploadHandler struct {
	uploads uploadService
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(uploads uploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload godoc
// @Summary Upload an image
// @Description Images only, 5MB or smaller. Returns a reference and a signed download URL.
// @Tags Uploads
// @Accept mpfd
// @Produce json
// @Param file formData file true "Image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.WithField(appErrors.ErrValidation, "file", "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	owner := "anonymous"
	if claims := claimsFromContext(c); claims != nil {
		owner = claims.UserID
	}
	result, err := h.uploads.Save(c.Request.Context(), owner, fileHeader.Filename, fileHeader.Size, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Fetch an uploaded file via signed token
// @Tags Uploads
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [get]
func (h *UploadHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, grant, err := h.uploads.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read file"))
		return
	}
	contentType := mime.TypeByExtension(path.Ext(grant.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "inline; filename=\""+path.Base(grant.Path)+"\"")
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
