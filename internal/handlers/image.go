package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"inkwell/internal/services"
)

const maxUploadSize = 10 * 1024 * 1024

type ImageHandler struct {
	uploader *services.ImageUploader
}

func NewImageHandler(uploader *services.ImageUploader) *ImageHandler {
	return &ImageHandler{uploader: uploader}
}

// Upload handles POST /api/upload. The multipart field is "image".
func (h *ImageHandler) Upload(c *gin.Context) {
	if !h.uploader.Enabled() {
		handleServiceError(c, services.ErrUploadNotConfigured)
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "Please choose an image to upload.")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(c, http.StatusBadRequest, "invalid_request", "Only image files can be uploaded.")
		return
	}

	if header.Size > maxUploadSize {
		writeError(c, http.StatusBadRequest, "invalid_request", "Images are limited to 10 MB.")
		return
	}

	result, err := h.uploader.Upload(c.Request.Context(), header.Filename, file)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"url":       result.URL,
		"id":        result.PublicID,
		"width":     result.Width,
		"height":    result.Height,
		"thumbnail": h.uploader.TransformURL(result.PublicID, 640),
	})
}
