package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/utils"
)

const NotificationPageSize = 20

// NotificationService writes in-app notifications for comment activity and
// emails reply notices when mail is configured.
type NotificationService struct {
	notes    NotificationStore
	comments CommentStore
	posts    PostStore
	users    UserStore
	mail     *MailService
	siteURL  string
	log      *zap.Logger
	now      func() time.Time
}

func NewNotificationService(store Store, bus *events.Bus, mail *MailService, siteURL string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		notes:    store,
		comments: store,
		posts:    store,
		users:    store,
		mail:     mail,
		siteURL:  strings.TrimRight(siteURL, "/"),
		log:      logger.Named("notifications"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	bus.Subscribe(s.onCommentCreated, events.CommentCreated)
	bus.Subscribe(s.onCommentModerated, events.CommentModerated)
	return s
}

func (s *NotificationService) commentLink(postID, commentID string) string {
	return fmt.Sprintf("%s/blog/%s#comment-%s", s.siteURL, postID, commentID)
}

func (s *NotificationService) create(ctx context.Context, n *models.Notification) {
	n.CreatedAt = s.now()
	if err := s.notes.CreateNotification(ctx, n); err != nil {
		s.log.Warn("create notification failed", zap.Uint("user_id", n.UserID), zap.Error(err))
	}
}

func (s *NotificationService) onCommentCreated(ctx context.Context, ev events.Event) {
	c, err := s.comments.GetComment(ctx, ev.CommentID)
	if err != nil {
		s.log.Warn("load comment for notification failed", zap.String("comment_id", ev.CommentID), zap.Error(err))
		return
	}
	post, err := s.posts.GetPost(ctx, c.PostID)
	if err != nil {
		s.log.Warn("load post for notification failed", zap.String("post_id", c.PostID), zap.Error(err))
		return
	}
	actorID := c.AuthorID

	// a reply notifies only the parent author
	if c.ParentID != nil {
		parent, err := s.comments.GetComment(ctx, *c.ParentID)
		if err != nil || parent.AuthorID == c.AuthorID {
			return
		}
		s.create(ctx, &models.Notification{
			UserID:    parent.AuthorID,
			ActorID:   &actorID,
			Type:      models.NotificationTypeReplyComment,
			PostID:    post.ID,
			CommentID: c.ID,
			Message:   fmt.Sprintf("%s replied to your comment on \"%s\"", c.AuthorName, post.Title),
		})

		if s.mail.Enabled() {
			if recipient, err := s.users.GetUser(ctx, parent.AuthorID); err == nil {
				s.mail.SendReplyNotification(recipient.Email, c.AuthorName, post.Title,
					c.Content, parent.Content, s.commentLink(post.ID, c.ID))
			}
		}
		return
	}

	if post.AuthorID != c.AuthorID {
		s.create(ctx, &models.Notification{
			UserID:    post.AuthorID,
			ActorID:   &actorID,
			Type:      models.NotificationTypeCommentPost,
			PostID:    post.ID,
			CommentID: c.ID,
			Message:   fmt.Sprintf("%s commented on your post \"%s\"", c.AuthorName, post.Title),
		})
	}
}

func (s *NotificationService) onCommentModerated(ctx context.Context, ev events.Event) {
	c, err := s.comments.GetComment(ctx, ev.CommentID)
	if err != nil || c.AuthorID == ev.ActorID {
		return
	}

	var msg string
	switch models.CommentStatus(ev.NewStatus) {
	case models.CommentFlagged:
		msg = "A moderator flagged your comment"
		if c.FlagReason != "" {
			msg += ": " + c.FlagReason
		}
	case models.CommentApproved:
		if ev.OldStatus != string(models.CommentPending) {
			return
		}
		msg = "Your comment was approved"
	default:
		return
	}

	actorID := ev.ActorID
	s.create(ctx, &models.Notification{
		UserID:    c.AuthorID,
		ActorID:   &actorID,
		Type:      models.NotificationTypeModeration,
		PostID:    c.PostID,
		CommentID: c.ID,
		Message:   msg,
	})
}

type NotificationList struct {
	Items  []models.Notification `json:"items"`
	Total  int64                 `json:"total"`
	Unread int64                 `json:"unread"`
	Page   int                   `json:"page"`
}

func (s *NotificationService) List(ctx context.Context, actor *models.User, page int) (*NotificationList, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if page < 1 {
		page = 1
	}

	items, total, err := s.notes.ListNotifications(ctx, actor.ID, NotificationPageSize, (page-1)*NotificationPageSize)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.notes.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	return &NotificationList{Items: items, Total: total, Unread: unread, Page: page}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notes.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor *models.User, id string) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	nid := utils.StringToUint(id)
	if nid == 0 {
		return ErrNotificationNotFound
	}
	return s.notes.MarkNotificationRead(ctx, actor.ID, nid)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor *models.User) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	return s.notes.MarkAllNotificationsRead(ctx, actor.ID)
}
