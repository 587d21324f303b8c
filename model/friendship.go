package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Friendship is the relationship between an unordered pair of users.
// The pair is stored canonically as (UserLow, UserHigh) so that (A,B) and
// (B,A) map to the same row; InitiatorID/CounterpartID keep the direction of
// the request that created or last reactivated it.
type Friendship struct {
	ID            int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserLow       int64            `gorm:"uniqueIndex:idx_friendship_pair;not null" json:"-"`
	UserHigh      int64            `gorm:"uniqueIndex:idx_friendship_pair;index:idx_friendship_high;not null" json:"-"`
	InitiatorID   int64            `gorm:"not null" json:"initiator_id"`
	CounterpartID int64            `gorm:"not null" json:"counterpart_id"`
	Status        FriendshipStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	KickedAt      *time.Time       `json:"kicked_at"`
	KickedBy      *int64           `json:"kicked_by"`
	BlockedAt     *time.Time       `json:"blocked_at"`
	BlockedBy     *int64           `json:"blocked_by"`
}

// BeforeSave keeps the canonical pair columns in sync with the endpoints.
func (f *Friendship) BeforeSave(_ *gorm.DB) error {
	f.UserLow, f.UserHigh = OrderedPair(f.InitiatorID, f.CounterpartID)
	return nil
}

// Other returns the member of the pair that is not userID.
func (f *Friendship) Other(userID int64) int64 {
	if f.InitiatorID == userID {
		return f.CounterpartID
	}
	return f.InitiatorID
}

// Involves reports whether userID is one of the two endpoints.
func (f *Friendship) Involves(userID int64) bool {
	return f.InitiatorID == userID || f.CounterpartID == userID
}

// FriendRequest is a directed request sender -> receiver.
//
// PendingKey is non-NULL only while the request is pending and holds the
// canonical pair, so the unique index admits at most one pending request per
// unordered pair regardless of direction.
type FriendRequest struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    int64         `gorm:"index:idx_friend_request_sender;not null" json:"sender_id"`
	ReceiverID  int64         `gorm:"index:idx_friend_request_receiver;not null" json:"receiver_id"`
	Status      RequestStatus `gorm:"size:16;not null" json:"status"`
	Message     string        `gorm:"type:text" json:"message"`
	SentAt      time.Time     `gorm:"autoCreateTime" json:"sent_at"`
	RespondedAt *time.Time    `json:"responded_at"`
	PendingKey  *string       `gorm:"uniqueIndex:idx_friend_request_pending;size:64" json:"-"`
}

func (r *FriendRequest) BeforeSave(_ *gorm.DB) error {
	if r.Status == RequestPending {
		key := PairKey(r.SenderID, r.ReceiverID)
		r.PendingKey = &key
	} else {
		r.PendingKey = nil
	}
	return nil
}

// OrderedPair returns a and b in ascending order.
func OrderedPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// PairKey is the direction-independent key for a pair of users.
func PairKey(a, b int64) string {
	lo, hi := OrderedPair(a, b)
	return fmt.Sprintf("%d:%d", lo, hi)
}
