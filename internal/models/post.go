package models

import (
	"strings"
	"time"
)

type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
)

type Post struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	AuthorID      uint       `gorm:"not null;index" json:"author_id"`
	AuthorName    string     `json:"author_name"`
	Title         string     `gorm:"not null" json:"title"`
	Summary       string     `gorm:"size:500" json:"summary"`
	Content       string     `gorm:"type:text" json:"content"` // Markdown
	CoverImageURL string     `json:"cover_image_url"`
	Tags          string     `json:"-"` // comma separated
	Status        PostStatus `gorm:"size:16;index;not null;default:'draft'" json:"status"`
	Views         int        `gorm:"default:0" json:"views"`
	Likes         int        `gorm:"default:0" json:"likes"`
	CommentCount  int        `gorm:"default:0" json:"comment_count"`
	Score         int        `gorm:"default:0;index" json:"score"`
	SourceURL     string     `gorm:"index" json:"source_url,omitempty"` // set for feed imports
	PublishedAt   *time.Time `json:"published_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TagList splits the stored tag column.
func (p *Post) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	parts := strings.Split(p.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (p *Post) IsPublished() bool {
	return p.Status == PostPublished
}
