package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"inkwell/internal/services"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type commentRequest struct {
	ParentID string `json:"parent_id" form:"parent_id"`
	Content  string `json:"content" form:"content"`
}

type flagRequest struct {
	Reason string `json:"reason" form:"reason"`
}

// threadOptions reads ?expand=a,b&form=reply&target=id&replies_after[a]=cursor.
func threadOptions(c *gin.Context) services.ThreadOptions {
	opts := services.ThreadOptions{Expanded: map[string]bool{}}
	for _, id := range strings.Split(c.Query("expand"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			opts.Expanded[id] = true
		}
	}
	if cursors := c.QueryMap("replies_after"); len(cursors) > 0 {
		opts.ReplyCursors = cursors
	}

	kind := services.FormKind(c.Query("form"))
	if target := c.Query("target"); target != "" && (kind == services.FormEdit || kind == services.FormReply) {
		opts.ActiveForm = services.ActiveForm{CommentID: target, Kind: kind}
	}
	return opts
}

func (h *CommentHandler) List(c *gin.Context) {
	page, err := h.comments.GetTopLevelComments(c.Request.Context(), currentUser(c), c.Param("id"), c.Query("cursor"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CommentHandler) Thread(c *gin.Context) {
	thread, err := h.comments.LoadThread(c.Request.Context(), currentUser(c), c.Param("id"), c.Query("cursor"), threadOptions(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *CommentHandler) Replies(c *gin.Context) {
	page, err := h.comments.GetRepliesByCommentID(c.Request.Context(), currentUser(c), c.Param("id"), c.Query("cursor"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	comment, err := h.comments.AddComment(c.Request.Context(), currentUser(c), services.NewComment{
		PostID:   c.Param("id"),
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (h *CommentHandler) Update(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	comment, err := h.comments.UpdateComment(c.Request.Context(), currentUser(c), c.Param("id"), req.Content)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

func (h *CommentHandler) Delete(c *gin.Context) {
	result, err := h.comments.DeleteComment(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CommentHandler) Flag(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	comment, err := h.comments.FlagCommentByUser(c.Request.Context(), currentUser(c), c.Param("id"), req.Reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

func (h *CommentHandler) Like(c *gin.Context) {
	comment, err := h.comments.LikeComment(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

func (h *CommentHandler) Unlike(c *gin.Context) {
	comment, err := h.comments.UnlikeComment(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}
