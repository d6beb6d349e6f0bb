package services

import (
	"context"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/utils"
)

// CommentOrder selects the timestamp used for keyset pagination.
type CommentOrder string

const (
	OrderByCreated CommentOrder = "created_at"
	OrderByUpdated CommentOrder = "updated_at"
)

// CommentQuery filters and pages comments. Results are ordered by the
// OrderBy timestamp and then id, descending unless Ascending is set.
type CommentQuery struct {
	PostID    string
	ParentID  *string // replies of this comment
	TopLevel  bool    // parent_id IS NULL
	AuthorID  uint
	Statuses  []models.CommentStatus
	OrderBy   CommentOrder
	Ascending bool
	After     *utils.Cursor
	Limit     int
}

// CommentStore persists comments. Implementations return ErrCommentNotFound
// for unknown ids.
type CommentStore interface {
	// CreateComment inserts c and, for replies, increments the parent's
	// reply count in the same transaction.
	CreateComment(ctx context.Context, c *models.Comment) error
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListComments(ctx context.Context, q CommentQuery) ([]models.Comment, error)
	// UpdateComment writes content, status, flag fields and updated_at only if
	// the stored status still equals expected. Otherwise it returns
	// ErrConcurrentModification.
	UpdateComment(ctx context.Context, c *models.Comment, expected models.CommentStatus) error
	// HardDeleteLeaf removes c only if it has no replies, decrementing the
	// parent's reply count. It reports false when a reply exists.
	HardDeleteLeaf(ctx context.Context, c *models.Comment) (bool, error)
	AddCommentLike(ctx context.Context, commentID string, userID uint) error
	RemoveCommentLike(ctx context.Context, commentID string, userID uint) error
	CountCommentsByStatus(ctx context.Context) (map[models.CommentStatus]int64, error)
}

type PostOrder string

const (
	PostOrderRecent PostOrder = "recent"
	PostOrderScore  PostOrder = "score"
)

// PostCounter names a counter column that may be bumped atomically.
type PostCounter string

const (
	CounterViews    PostCounter = "views"
	CounterLikes    PostCounter = "likes"
	CounterComments PostCounter = "comment_count"
)

type PostQuery struct {
	Status         models.PostStatus // empty means any
	AuthorID       uint
	OrderBy        PostOrder
	PublishedSince *time.Time
	Limit          int
	Offset         int
}

type PostStore interface {
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, p *models.Post) error
	// DeletePost removes the post with its comments.
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, q PostQuery) ([]models.Post, int64, error)
	IncrementPostCounter(ctx context.Context, id string, counter PostCounter, delta int) error
	FindPostBySourceURL(ctx context.Context, url string) (*models.Post, error)
	SetPostScore(ctx context.Context, id string, score int) error
	CountPosts(ctx context.Context) (int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error)
	CountUsers(ctx context.Context) (int64, error)
	// ChangeRole updates the role and writes audit in one transaction.
	ChangeRole(ctx context.Context, userID uint, role models.Role, audit *models.RoleChangeAudit) error
	ListRoleAudits(ctx context.Context, userID uint) ([]models.RoleChangeAudit, error)
}

type ChatStore interface {
	SaveChatMessage(ctx context.Context, m *models.ChatMessage) error
	GetChatMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	// SaveChatFeedback returns ErrFeedbackGiven when the message already has
	// feedback.
	SaveChatFeedback(ctx context.Context, f *models.ChatFeedback) error
	RecordRuleHit(ctx context.Context, ruleID string) error
	RecordRuleFeedback(ctx context.Context, ruleID string, helpful bool) error
	ListChatAnalytics(ctx context.Context) ([]models.ChatAnalytics, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id uint) error
	MarkAllNotificationsRead(ctx context.Context, userID uint) error
}

// Store bundles every repository. Both the gorm and in-memory backends
// implement it.
type Store interface {
	CommentStore
	PostStore
	UserStore
	ChatStore
	NotificationStore
}
