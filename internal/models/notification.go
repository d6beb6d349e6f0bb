package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeCommentPost  NotificationType = "comment_post"
	NotificationTypeReplyComment NotificationType = "reply_comment"
	NotificationTypeModeration   NotificationType = "moderation"
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"` // receiver
	ActorID   *uint            `gorm:"index" json:"actor_id"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	PostID    string           `gorm:"size:36" json:"post_id"`
	CommentID string           `gorm:"size:36" json:"comment_id"`
	Message   string           `gorm:"type:text" json:"message"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
