package model

import "time"

// NotificationType names the transition that produced a notification.
type NotificationType string

const (
	NotifyFriendRequestReceived NotificationType = "friend_request_received"
	NotifyFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotifyFriendRequestDeclined NotificationType = "friend_request_declined"
	NotifyUserKick              NotificationType = "user_kick"
	NotifyUserBlock             NotificationType = "user_block"
	NotifyUserUnblock           NotificationType = "user_unblock"
	NotifyGroupRequestReceived  NotificationType = "group_request_received"
	NotifyGroupRequestAccepted  NotificationType = "group_request_accepted"
	NotifyGroupRequestDeclined  NotificationType = "group_request_declined"
	NotifyGroupKick             NotificationType = "group_kick"
	NotifyGroupBlock            NotificationType = "group_block"
	NotifyGroupUnblock          NotificationType = "group_unblock"
)

// Valid reports whether t is one of the declared types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyFriendRequestReceived, NotifyFriendRequestAccepted, NotifyFriendRequestDeclined,
		NotifyUserKick, NotifyUserBlock, NotifyUserUnblock,
		NotifyGroupRequestReceived, NotifyGroupRequestAccepted, NotifyGroupRequestDeclined,
		NotifyGroupKick, NotifyGroupBlock, NotifyGroupUnblock:
		return true
	}
	return false
}

// Notification is owned by its recipient and never changes except IsRead.
type Notification struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	RecipientID int64            `gorm:"index:idx_notification_recipient;not null" json:"recipient_id"`
	ActorID     int64            `gorm:"not null" json:"actor_id"`
	GroupID     *int64           `json:"group_id"`
	Type        NotificationType `gorm:"size:32;not null" json:"type"`
	IsRead      bool             `gorm:"default:false;index:idx_notification_recipient" json:"is_read"`
	ReceivedAt  time.Time        `gorm:"autoCreateTime;index" json:"received_at"`
}
