package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/utils"
)

const (
	CommentPageSize  = 10
	MaxCommentDepth  = 10
	MaxCommentLength = 1000

	commentCacheTTL = 5 * time.Minute
)

// NewComment is the input of AddComment. An empty ParentID makes a
// top-level comment.
type NewComment struct {
	PostID   string `json:"post_id"`
	ParentID string `json:"parent_id"`
	Content  string `json:"content"`
}

// CommentPage is one page of comments. HasMore is set whenever the page is
// full, so the last page may be followed by an empty one.
type CommentPage struct {
	Items      []models.Comment `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

type DeleteResult struct {
	Comment *models.Comment `json:"comment,omitempty"`
	Hard    bool            `json:"hard"`
}

type CommentService struct {
	comments CommentStore
	posts    PostStore
	users    UserStore
	bus      *events.Bus
	cache    *utils.Cache
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewCommentService(store Store, bus *events.Bus, cache *utils.Cache, logger *zap.Logger) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache, _ = utils.NewCache(512)
	}
	s := &CommentService{
		comments: store,
		posts:    store,
		users:    store,
		bus:      bus,
		cache:    cache,
		log:      logger.Named("comments"),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID:    uuid.NewString,
	}
	topics := append([]events.Topic{events.PostUpdated, events.PostDeleted}, events.CommentTopics...)
	bus.Subscribe(func(_ context.Context, ev events.Event) {
		s.ClearCache(ev.PostID)
	}, topics...)
	return s
}

func commentCachePrefix(postID string) string {
	return "comments:post:" + postID + ":"
}

func topLevelCacheKey(postID string) string {
	return commentCachePrefix(postID) + "top"
}

func repliesCacheKey(postID, commentID string) string {
	return commentCachePrefix(postID) + "replies:" + commentID
}

// ClearCache drops every cached page of one post.
func (s *CommentService) ClearCache(postID string) {
	if postID == "" {
		return
	}
	s.cache.DeletePrefix(commentCachePrefix(postID))
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func decodeCursor(token string) (*utils.Cursor, error) {
	cur, err := utils.DecodeCursor(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return cur, nil
}

func (s *CommentService) publish(ctx context.Context, topic events.Topic, c *models.Comment, actor *models.User, old models.CommentStatus) {
	ev := events.Event{
		Topic:     topic,
		PostID:    c.PostID,
		CommentID: c.ID,
		OldStatus: string(old),
		NewStatus: string(c.Status),
		At:        s.now(),
	}
	if c.ParentID != nil {
		ev.ParentID = *c.ParentID
	}
	if actor != nil {
		ev.ActorID = actor.ID
	}
	s.bus.Publish(ctx, ev)
}

// AddComment creates a comment or reply. Admins and authors are approved
// immediately, everyone else waits in the pending queue.
func (s *CommentService) AddComment(ctx context.Context, actor *models.User, in NewComment) (*models.Comment, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if err := ensureCanPost(ctx, s.users, actor, s.now(), s.log); err != nil {
		return nil, err
	}

	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetPost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, ErrPostNotPublished
	}

	depth := 0
	var parentID *string
	if in.ParentID != "" {
		parent, err := s.comments.GetComment(ctx, in.ParentID)
		if err != nil {
			if errors.Is(err, ErrCommentNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
		switch {
		case parent.PostID != post.ID:
			return nil, ErrParentMismatch
		case parent.Status == models.CommentDeleted:
			return nil, ErrParentDeleted
		case parent.Depth >= MaxCommentDepth:
			return nil, ErrMaxDepthExceeded
		case parent.Status != models.CommentApproved && !actor.IsAdmin() && actor.ID != parent.AuthorID:
			return nil, ErrParentNotVisible
		}
		depth = parent.Depth + 1
		parentID = &parent.ID
	}

	status := models.CommentPending
	if actor.IsPrivileged() {
		status = models.CommentApproved
	}

	now := s.now()
	c := &models.Comment{
		ID:             s.newID(),
		PostID:         post.ID,
		Content:        content,
		AuthorID:       actor.ID,
		AuthorName:     actor.Username,
		AuthorPhotoURL: actor.PhotoURL,
		ParentID:       parentID,
		Depth:          depth,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.comments.CreateComment(ctx, c); err != nil {
		s.log.Error("create comment failed", zap.String("post_id", post.ID), zap.Error(err))
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if err := s.posts.IncrementPostCounter(ctx, post.ID, CounterComments, 1); err != nil {
		s.log.Warn("bump post comment count failed", zap.String("post_id", post.ID), zap.Error(err))
	}

	s.publish(ctx, events.CommentCreated, c, actor, "")
	return c, nil
}

// visiblePost loads a post and hides it from viewers who may not read it.
func (s *CommentService) visiblePost(ctx context.Context, viewer *models.User, postID string) (*models.Post, error) {
	p, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !canViewPost(viewer, p) {
		return nil, ErrPostNotFound
	}
	return p, nil
}

// GetTopLevelComments pages the visible top-level comments of a post, newest
// first. The first page is served from cache.
func (s *CommentService) GetTopLevelComments(ctx context.Context, viewer *models.User, postID, cursor string) (*CommentPage, error) {
	if _, err := s.visiblePost(ctx, viewer, postID); err != nil {
		return nil, err
	}
	return s.topLevelPage(ctx, postID, cursor)
}

func (s *CommentService) topLevelPage(ctx context.Context, postID, cursor string) (*CommentPage, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	key := topLevelCacheKey(postID)
	if after == nil {
		if page, ok := s.cache.Get(key).(*CommentPage); ok {
			return page.clone(), nil
		}
	}

	page, err := s.listPage(ctx, CommentQuery{
		PostID:   postID,
		TopLevel: true,
		Statuses: visibleStatuses,
		OrderBy:  OrderByCreated,
		After:    after,
		Limit:    CommentPageSize,
	})
	if err != nil {
		return nil, err
	}

	if after == nil {
		s.cache.Set(key, page.clone(), commentCacheTTL)
	}
	return page, nil
}

// GetRepliesByCommentID pages the visible direct replies of a comment,
// oldest first.
func (s *CommentService) GetRepliesByCommentID(ctx context.Context, viewer *models.User, commentID, cursor string) (*CommentPage, error) {
	parent, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visiblePost(ctx, viewer, parent.PostID); err != nil {
		return nil, err
	}
	return s.repliesPage(ctx, parent, cursor)
}

func (s *CommentService) repliesPage(ctx context.Context, parent *models.Comment, cursor string) (*CommentPage, error) {
	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	key := repliesCacheKey(parent.PostID, parent.ID)
	if after == nil {
		if page, ok := s.cache.Get(key).(*CommentPage); ok {
			return page.clone(), nil
		}
	}

	page, err := s.listPage(ctx, CommentQuery{
		PostID:    parent.PostID,
		ParentID:  &parent.ID,
		Statuses:  visibleStatuses,
		OrderBy:   OrderByCreated,
		Ascending: true,
		After:     after,
		Limit:     CommentPageSize,
	})
	if err != nil {
		return nil, err
	}

	if after == nil {
		s.cache.Set(key, page.clone(), commentCacheTTL)
	}
	return page, nil
}

func (s *CommentService) listPage(ctx context.Context, q CommentQuery) (*CommentPage, error) {
	items, err := s.comments.ListComments(ctx, q)
	if err != nil {
		s.log.Error("list comments failed", zap.String("post_id", q.PostID), zap.Error(err))
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if items == nil {
		items = []models.Comment{}
	}

	page := &CommentPage{Items: items, HasMore: len(items) >= q.Limit}
	if page.HasMore {
		last := items[len(items)-1]
		at := last.CreatedAt
		if q.OrderBy == OrderByUpdated {
			at = last.UpdatedAt
		}
		page.NextCursor = utils.Cursor{At: at, ID: last.ID}.Encode()
	}
	return page, nil
}

func (p *CommentPage) clone() *CommentPage {
	cp := *p
	cp.Items = append([]models.Comment(nil), p.Items...)
	return &cp
}

// GetComment returns a single comment regardless of status.
func (s *CommentService) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	return s.comments.GetComment(ctx, id)
}

// UpdateComment edits the content of a comment. A content change by a user
// without the admin or author role sends the comment back to pending.
func (s *CommentService) UpdateComment(ctx context.Context, actor *models.User, id, content string) (*models.Comment, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if c.Status == models.CommentDeleted {
		return nil, ErrCommentDeleted
	}
	if err := ensureCanPost(ctx, s.users, actor, s.now(), s.log); err != nil {
		return nil, err
	}

	content, err = normalizeContent(content)
	if err != nil {
		return nil, err
	}
	if content == c.Content {
		return c, nil
	}

	old := c.Status
	c.Content = content
	c.UpdatedAt = s.now()
	if !actor.IsPrivileged() {
		c.Status = models.CommentPending
		c.FlagReason = ""
		c.FlaggedBy = nil
	}

	if err := s.comments.UpdateComment(ctx, c, old); err != nil {
		s.log.Error("update comment failed", zap.String("comment_id", id), zap.Error(err))
		return nil, fmt.Errorf("update comment: %w", err)
	}

	s.publish(ctx, events.CommentUpdated, c, actor, old)
	return c, nil
}

// DeleteComment removes a comment. Leaves are removed outright. A comment
// with replies keeps its place in the thread as a placeholder.
func (s *CommentService) DeleteComment(ctx context.Context, actor *models.User, id string) (*DeleteResult, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actor.ID && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	old := c.Status
	if c.ReplyCount == 0 {
		removed, err := s.comments.HardDeleteLeaf(ctx, c)
		if err != nil {
			s.log.Error("delete comment failed", zap.String("comment_id", id), zap.Error(err))
			return nil, fmt.Errorf("delete comment: %w", err)
		}
		if removed {
			if err := s.posts.IncrementPostCounter(ctx, c.PostID, CounterComments, -1); err != nil {
				s.log.Warn("drop post comment count failed", zap.String("post_id", c.PostID), zap.Error(err))
			}
			c.Status = models.CommentDeleted
			s.publish(ctx, events.CommentDeleted, c, actor, old)
			return &DeleteResult{Comment: c, Hard: true}, nil
		}
		// a reply arrived after the read, fall through to a soft delete
	}

	if c.Status == models.CommentDeleted {
		return nil, ErrCommentDeleted
	}

	c.Content = models.DeletedCommentContent
	c.Status = models.CommentDeleted
	c.FlagReason = ""
	c.FlaggedBy = nil
	c.UpdatedAt = s.now()

	if err := s.comments.UpdateComment(ctx, c, old); err != nil {
		s.log.Error("soft delete comment failed", zap.String("comment_id", id), zap.Error(err))
		return nil, fmt.Errorf("delete comment: %w", err)
	}

	s.publish(ctx, events.CommentDeleted, c, actor, old)
	return &DeleteResult{Comment: c, Hard: false}, nil
}

// ModerateComment moves a comment to approved or flagged.
func (s *CommentService) ModerateComment(ctx context.Context, actor *models.User, id string, status models.CommentStatus, reason string) (*models.Comment, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if status != models.CommentApproved && status != models.CommentFlagged {
		return nil, ErrInvalidStatus
	}

	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CommentDeleted {
		return nil, ErrCommentDeleted
	}
	if !CanTransition(c.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, status)
	}

	old := c.Status
	c.Status = status
	c.UpdatedAt = s.now()
	if status == models.CommentFlagged {
		c.FlagReason = strings.TrimSpace(reason)
		c.FlaggedBy = &actor.ID
	} else {
		c.FlagReason = ""
		c.FlaggedBy = nil
	}

	if err := s.comments.UpdateComment(ctx, c, old); err != nil {
		s.log.Error("moderate comment failed", zap.String("comment_id", id), zap.Error(err))
		return nil, fmt.Errorf("moderate comment: %w", err)
	}

	s.log.Info("comment moderated",
		zap.String("comment_id", id),
		zap.String("from", string(old)),
		zap.String("to", string(status)),
		zap.Uint("admin_id", actor.ID),
	)
	s.publish(ctx, events.CommentModerated, c, actor, old)
	return c, nil
}

// FlagCommentByUser lets any signed-in user report a comment. The latest
// flag overwrites the previous reason and reporter.
func (s *CommentService) FlagCommentByUser(ctx context.Context, actor *models.User, id, reason string) (*models.Comment, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CommentDeleted {
		return nil, ErrCommentDeleted
	}

	old := c.Status
	c.Status = models.CommentFlagged
	c.FlagReason = strings.TrimSpace(reason)
	c.FlaggedBy = &actor.ID
	c.UpdatedAt = s.now()

	if err := s.comments.UpdateComment(ctx, c, old); err != nil {
		s.log.Error("flag comment failed", zap.String("comment_id", id), zap.Error(err))
		return nil, fmt.Errorf("flag comment: %w", err)
	}

	s.publish(ctx, events.CommentFlagged, c, actor, old)
	return c, nil
}

func (s *CommentService) LikeComment(ctx context.Context, actor *models.User, id string) (*models.Comment, error) {
	return s.toggleLike(ctx, actor, id, true)
}

func (s *CommentService) UnlikeComment(ctx context.Context, actor *models.User, id string) (*models.Comment, error) {
	return s.toggleLike(ctx, actor, id, false)
}

func (s *CommentService) toggleLike(ctx context.Context, actor *models.User, id string, like bool) (*models.Comment, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	c, err := s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}

	if like {
		if c.Status == models.CommentDeleted {
			return nil, ErrCommentDeleted
		}
		err = s.comments.AddCommentLike(ctx, id, actor.ID)
	} else {
		err = s.comments.RemoveCommentLike(ctx, id, actor.ID)
	}
	if err != nil {
		return nil, err
	}

	c, err = s.comments.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.CommentLiked, c, actor, c.Status)
	return c, nil
}

// ListModerationQueue pages one moderation queue. Recently approved comments
// are ordered by approval time, the other queues by creation time.
func (s *CommentService) ListModerationQueue(ctx context.Context, actor *models.User, status models.CommentStatus, cursor string) (*CommentPage, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if !isModerationQueue(status) {
		return nil, ErrInvalidStatus
	}

	after, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	order := OrderByCreated
	if status == models.CommentApproved {
		order = OrderByUpdated
	}

	return s.listPage(ctx, CommentQuery{
		Statuses: []models.CommentStatus{status},
		OrderBy:  order,
		After:    after,
		Limit:    CommentPageSize,
	})
}

// CountByStatus returns how many comments sit in each status.
func (s *CommentService) CountByStatus(ctx context.Context) (map[models.CommentStatus]int64, error) {
	return s.comments.CountCommentsByStatus(ctx)
}
