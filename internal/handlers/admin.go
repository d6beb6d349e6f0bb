package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inkwell/internal/models"
	"inkwell/internal/services"
)

type AdminHandler struct {
	comments  *services.CommentService
	dashboard *services.ModerationDashboard
	users     *services.UserService
	importer  *services.FeedImporter
	chat      *services.ChatService
}

func NewAdminHandler(comments *services.CommentService, dashboard *services.ModerationDashboard, users *services.UserService, importer *services.FeedImporter, chat *services.ChatService) *AdminHandler {
	return &AdminHandler{
		comments:  comments,
		dashboard: dashboard,
		users:     users,
		importer:  importer,
		chat:      chat,
	}
}

func queueParam(c *gin.Context) models.CommentStatus {
	return models.CommentStatus(c.Param("queue"))
}

func (h *AdminHandler) Queue(c *gin.Context) {
	q, err := h.dashboard.Queue(c.Request.Context(), currentUser(c), queueParam(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *AdminHandler) QueueMore(c *gin.Context) {
	q, err := h.dashboard.LoadMore(c.Request.Context(), currentUser(c), queueParam(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *AdminHandler) QueueReload(c *gin.Context) {
	q, err := h.dashboard.Reload(c.Request.Context(), currentUser(c), queueParam(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type moderateRequest struct {
	Status models.CommentStatus `json:"status" form:"status" binding:"required"`
	Reason string               `json:"reason" form:"reason"`
}

func (h *AdminHandler) Moderate(c *gin.Context) {
	var req moderateRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	comment, err := h.comments.ModerateComment(c.Request.Context(), currentUser(c), c.Param("id"), req.Status, req.Reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context(), currentUser(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	page := pageParam(c)
	const pageSize = 50
	users, total, err := h.users.ListUsers(c.Request.Context(), currentUser(c), pageSize, (page-1)*pageSize)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users, "total": total, "page": page})
}

type roleRequest struct {
	Role   models.Role `json:"role" form:"role" binding:"required"`
	Reason string      `json:"reason" form:"reason"`
}

func (h *AdminHandler) ChangeRole(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.ChangeRole(c.Request.Context(), currentUser(c), userID, req.Role, req.Reason)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AdminHandler) RoleAudit(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	audits, err := h.users.ListRoleAudits(c.Request.Context(), currentUser(c), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": audits})
}

type punishRequest struct {
	Status int `json:"status" form:"status"` // 0 normal, 1 muted, 2 banned
	Days   int `json:"days" form:"days"`
}

// PunishUser mutes or bans a user, optionally for a number of days.
func (h *AdminHandler) PunishUser(c *gin.Context) {
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req punishRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.Punish(c.Request.Context(), currentUser(c), userID, req.Status, req.Days)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type importFeedRequest struct {
	URL string `json:"url" form:"url" binding:"required"`
}

func (h *AdminHandler) ImportFeed(c *gin.Context) {
	var req importFeedRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.importer.Import(c.Request.Context(), currentUser(c), req.URL)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) ChatAnalytics(c *gin.Context) {
	rows, err := h.chat.Analytics(c.Request.Context(), currentUser(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// ModerationPage renders all three queues; ?reload=<queue> refreshes one.
func (h *AdminHandler) ModerationPage(c *gin.Context) {
	ctx := c.Request.Context()
	actor := currentUser(c)

	if reload := models.CommentStatus(c.Query("reload")); reload != "" {
		if _, err := h.dashboard.Reload(ctx, actor, reload); err != nil {
			renderServiceError(c, err)
			return
		}
	}

	queues := make([]*services.ModerationQueue, 0, 3)
	for _, status := range []models.CommentStatus{models.CommentPending, models.CommentFlagged, models.CommentApproved} {
		q, err := h.dashboard.Queue(ctx, actor, status)
		if err != nil {
			renderServiceError(c, err)
			return
		}
		queues = append(queues, q)
	}
	stats, err := h.dashboard.Stats(ctx, actor)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	Render(c, http.StatusOK, "admin/moderation.html", gin.H{
		"Title":  "Moderation",
		"Queues": queues,
		"Stats":  stats,
	})
}
