package models

import (
	"time"
)

type RoleChangeAudit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ChangedBy uint      `gorm:"not null" json:"changed_by"`
	OldRole   Role      `gorm:"size:20;not null" json:"old_role"`
	NewRole   Role      `gorm:"size:20;not null" json:"new_role"`
	Reason    string    `gorm:"size:200" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
