package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"inkwell/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text" binding:"required"`
}

type chatFeedbackRequest struct {
	Helpful *bool  `json:"helpful" binding:"required"`
	Comment string `json:"comment"`
}

// Send answers one widget message. A new session id is issued when the
// widget has none yet.
func (h *ChatHandler) Send(c *gin.Context) {
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	exchange, err := h.chat.Send(c.Request.Context(), currentUser(c), req.SessionID, req.Text)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": req.SessionID,
		"question":   exchange.Question,
		"answer":     exchange.Answer,
	})
}

func (h *ChatHandler) Feedback(c *gin.Context) {
	var req chatFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	fb, err := h.chat.Feedback(c.Request.Context(), c.Param("id"), *req.Helpful, req.Comment)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"feedback": fb})
}

func (h *ChatHandler) History(c *gin.Context) {
	messages, err := h.chat.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": messages})
}
