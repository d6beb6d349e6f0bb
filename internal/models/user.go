package models

import (
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAuthor Role = "author"
	RoleAdmin  Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAuthor, RoleAdmin:
		return true
	}
	return false
}

// User account status values.
const (
	UserStatusNormal = 0
	UserStatusMuted  = 1
	UserStatusBanned = 2
)

type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Username      string     `gorm:"not null" json:"username"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	Password      string     `gorm:"not null" json:"-"` // bcrypt hash
	PhotoURL      string     `json:"photo_url"`
	Bio           string     `gorm:"size:200" json:"bio"`
	Role          Role       `gorm:"size:20;default:'user';not null" json:"role"`
	Status        int        `gorm:"default:0" json:"status"` // 0 normal, 1 muted, 2 banned
	PunishExpires *time.Time `json:"punish_expires"`
	GoogleID      string     `gorm:"index" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsPrivileged is true for admins and authors. Their comments skip the
// moderation queue.
func (u *User) IsPrivileged() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleAuthor)
}
