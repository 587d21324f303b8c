package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Group is owned by a single admin. Deleting it cascades to memberships and
// join requests.
type Group struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID     int64             `gorm:"index:idx_group_admin;not null" json:"admin_id"`
	Name        string            `gorm:"size:50;not null" json:"name"`
	Description string            `gorm:"type:text" json:"description"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	Memberships []GroupMembership `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Requests    []GroupAddRequest `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName avoids GROUPS, a reserved word in MySQL 8.
func (Group) TableName() string { return "social_groups" }

// GroupMembership links a user to a group. At most one row per (user, group).
type GroupMembership struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64            `gorm:"uniqueIndex:idx_membership_user_group;not null" json:"user_id"`
	GroupID   int64            `gorm:"uniqueIndex:idx_membership_user_group;index:idx_membership_group;not null" json:"group_id"`
	Status    MembershipStatus `gorm:"size:16;not null" json:"status"`
	StartedAt time.Time        `json:"started_at"`
	KickedAt  *time.Time       `json:"kicked_at"`
	BlockedAt *time.Time       `json:"blocked_at"`
}

// GroupAddRequest is a directed request user -> group.
type GroupAddRequest struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64         `gorm:"index:idx_group_request_user;not null" json:"user_id"`
	GroupID     int64         `gorm:"index:idx_group_request_group;not null" json:"group_id"`
	Status      RequestStatus `gorm:"size:16;not null" json:"status"`
	Message     string        `gorm:"type:text" json:"message"`
	SentAt      time.Time     `gorm:"autoCreateTime" json:"sent_at"`
	RespondedAt *time.Time    `json:"responded_at"`
	PendingKey  *string       `gorm:"uniqueIndex:idx_group_request_pending;size:64" json:"-"`
}

func (r *GroupAddRequest) BeforeSave(_ *gorm.DB) error {
	if r.Status == RequestPending {
		key := fmt.Sprintf("%d:%d", r.UserID, r.GroupID)
		r.PendingKey = &key
	} else {
		r.PendingKey = nil
	}
	return nil
}
