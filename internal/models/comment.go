package models

import (
	"time"
)

type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentFlagged  CommentStatus = "flagged"
	CommentDeleted  CommentStatus = "deleted"
)

// DeletedCommentContent replaces the body of a soft-deleted comment.
const DeletedCommentContent = "[This comment has been deleted]"

type Comment struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	PostID         string        `gorm:"size:36;not null;index" json:"post_id"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	AuthorID       uint          `gorm:"not null;index" json:"author_id"`
	AuthorName     string        `json:"author_name"`
	AuthorPhotoURL string        `json:"author_photo_url"`
	ParentID       *string       `gorm:"size:36;index" json:"parent_id"` // nil for top-level comments
	Depth          int           `gorm:"not null;default:0" json:"depth"`
	Status         CommentStatus `gorm:"size:16;not null;index" json:"status"`
	Likes          int           `gorm:"not null;default:0" json:"likes"`
	ReplyCount     int           `gorm:"not null;default:0" json:"reply_count"`
	FlagReason     string        `gorm:"size:200" json:"flag_reason,omitempty"`
	FlaggedBy      *uint         `json:"flagged_by,omitempty"`
	CreatedAt      time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"index" json:"updated_at"`
}

func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil
}

// CommentLike records one user's like so the counter on Comment can only be
// bumped once per user.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID string    `gorm:"size:36;not null;uniqueIndex:idx_comment_like" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_like" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
