package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inkwell/internal/services"
)

type NotificationHandler struct {
	notes *services.NotificationService
}

func NewNotificationHandler(notes *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notes: notes}
}

func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.notes.List(c.Request.Context(), currentUser(c), pageParam(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) Read(c *gin.Context) {
	if err := h.notes.MarkRead(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	if err := h.notes.MarkAllRead(c.Request.Context(), currentUser(c)); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
