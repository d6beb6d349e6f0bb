package models

import (
	"time"
)

type ChatSender string

const (
	ChatSenderUser ChatSender = "user"
	ChatSenderBot  ChatSender = "bot"
)

type ChatMessage struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID string     `gorm:"size:64;not null;index" json:"session_id"`
	UserID    *uint      `gorm:"index" json:"user_id,omitempty"`
	Sender    ChatSender `gorm:"size:8;not null" json:"sender"`
	Text      string     `gorm:"type:text;not null" json:"text"`
	RuleID    string     `gorm:"size:64" json:"rule_id,omitempty"` // bot messages only
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

type ChatFeedback struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"size:36;not null;uniqueIndex" json:"message_id"`
	SessionID string    `gorm:"size:64;not null" json:"session_id"`
	RuleID    string    `gorm:"size:64" json:"rule_id"`
	Helpful   bool      `json:"helpful"`
	Comment   string    `gorm:"size:500" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatAnalytics aggregates per-rule counters.
type ChatAnalytics struct {
	RuleID    string    `gorm:"primaryKey;size:64" json:"rule_id"`
	Hits      int       `gorm:"not null;default:0" json:"hits"`
	Helpful   int       `gorm:"not null;default:0" json:"helpful"`
	Unhelpful int       `gorm:"not null;default:0" json:"unhelpful"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ChatAnalytics) TableName() string {
	return "chat_analytics"
}
