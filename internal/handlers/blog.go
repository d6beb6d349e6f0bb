package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inkwell/internal/models"
	"inkwell/internal/services"
)

type BlogHandler struct {
	posts    *services.PostService
	comments *services.CommentService
	siteURL  string
}

func NewBlogHandler(posts *services.PostService, comments *services.CommentService, siteURL string) *BlogHandler {
	return &BlogHandler{posts: posts, comments: comments, siteURL: siteURL}
}

// postResponse exposes tags as a list.
type postResponse struct {
	*models.Post
	Tags []string `json:"tags"`
}

func newPostResponse(p *models.Post) postResponse {
	return postResponse{Post: p, Tags: p.TagList()}
}

func newPostResponses(posts []models.Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i := range posts {
		out[i] = newPostResponse(&posts[i])
	}
	return out
}

func (h *BlogHandler) ListPosts(c *gin.Context) {
	page := pageParam(c)
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(services.PostPageSize)))

	posts, total, err := h.posts.ListPublished(c.Request.Context(), page, size)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newPostResponses(posts), "total": total, "page": page})
}

func (h *BlogHandler) Trending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	posts, err := h.posts.ListTrending(c.Request.Context(), limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newPostResponses(posts)})
}

func (h *BlogHandler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := h.posts.GetPost(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.posts.RecordView(ctx, post)

	c.JSON(http.StatusOK, gin.H{
		"post": newPostResponse(post),
		"html": h.posts.RenderContent(post),
	})
}

func (h *BlogHandler) CreatePost(c *gin.Context) {
	var in services.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	post, err := h.posts.CreatePost(c.Request.Context(), currentUser(c), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": newPostResponse(post)})
}

func (h *BlogHandler) UpdatePost(c *gin.Context) {
	var in services.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	post, err := h.posts.UpdatePost(c.Request.Context(), currentUser(c), c.Param("id"), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": newPostResponse(post)})
}

func (h *BlogHandler) DeletePost(c *gin.Context) {
	if err := h.posts.DeletePost(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *BlogHandler) MyPosts(c *gin.Context) {
	page := pageParam(c)
	posts, total, err := h.posts.ListOwn(c.Request.Context(), currentUser(c), page)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": newPostResponses(posts), "total": total, "page": page})
}

func (h *BlogHandler) Share(c *gin.Context) {
	post, err := h.posts.GetPost(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.posts.ShareLinks(h.siteURL, post))
}

// HTML pages

func (h *BlogHandler) ListPage(c *gin.Context) {
	ctx := c.Request.Context()
	page := pageParam(c)

	posts, total, err := h.posts.ListPublished(ctx, page, services.PostPageSize)
	if err != nil {
		renderServiceError(c, err)
		return
	}
	trending, err := h.posts.ListTrending(ctx, 5)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	Render(c, http.StatusOK, "blog/list.html", gin.H{
		"Title":    "Blog",
		"Posts":    posts,
		"Trending": trending,
		"Page":     page,
		"HasNext":  int64(page*services.PostPageSize) < total,
	})
}

func (h *BlogHandler) DetailPage(c *gin.Context) {
	ctx := c.Request.Context()
	viewer := currentUser(c)

	post, err := h.posts.GetPost(ctx, viewer, c.Param("id"))
	if err != nil {
		renderServiceError(c, err)
		return
	}
	h.posts.RecordView(ctx, post)

	thread, err := h.comments.LoadThread(ctx, viewer, post.ID, c.Query("cursor"), threadOptions(c))
	if err != nil {
		renderServiceError(c, err)
		return
	}

	Render(c, http.StatusOK, "blog/detail.html", gin.H{
		"Title":   post.Title,
		"Post":    post,
		"Content": h.posts.RenderContent(post),
		"Share":   h.posts.ShareLinks(h.siteURL, post),
		"Thread":  thread,
	})
}

// RepliesPartial renders one expanded comment with its replies, without
// the page layout.
func (h *BlogHandler) RepliesPartial(c *gin.Context) {
	node, err := h.comments.LoadReplies(c.Request.Context(), currentUser(c), c.Param("cid"), c.Query("cursor"), threadOptions(c))
	if err != nil {
		status, _ := errorStatus(err)
		c.String(status, services.UserMessage(err))
		return
	}
	if node.Comment.PostID != c.Param("id") {
		c.String(http.StatusNotFound, services.UserMessage(services.ErrCommentNotFound))
		return
	}
	Render(c, http.StatusOK, "blog/replies.html", gin.H{"Node": node, "PostID": node.Comment.PostID})
}
