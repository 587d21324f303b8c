package store

import (
	"fmt"
	"time"

	"github.com/fitcircle/fitcircle/model"
	"gorm.io/gorm"
)

// FindPair returns the friendship row for the unordered pair {a, b}, or nil.
// FindPair(a, b) and FindPair(b, a) address the same row.
func FindPair(tx *gorm.DB, a, b int64) (*model.Friendship, error) {
	lo, hi := model.OrderedPair(a, b)
	var f model.Friendship
	ok, err := first(forUpdate(tx).Where("user_low = ? AND user_high = ?", lo, hi), &f, "friendship")
	if err != nil || !ok {
		return nil, err
	}
	return &f, nil
}

// SaveFriendship inserts f when new, otherwise writes every column so that
// cleared pointer fields are persisted as NULL.
func SaveFriendship(tx *gorm.DB, f *model.Friendship) error {
	return write(tx.Save(f).Error, "friendship")
}

func DeleteFriendship(tx *gorm.DB, f *model.Friendship) error {
	return write(tx.Delete(f).Error, "friendship")
}

// FindPendingFriendRequest returns the pending request between a and b in
// either direction, or nil.
func FindPendingFriendRequest(tx *gorm.DB, a, b int64) (*model.FriendRequest, error) {
	var r model.FriendRequest
	ok, err := first(forUpdate(tx).Where("pending_key = ?", model.PairKey(a, b)), &r, "friend request")
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

// GetFriendRequest loads a request by ID, or nil.
func GetFriendRequest(tx *gorm.DB, id int64) (*model.FriendRequest, error) {
	var r model.FriendRequest
	ok, err := first(forUpdate(tx).Where("id = ?", id), &r, "friend request")
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func CreateFriendRequest(tx *gorm.DB, r *model.FriendRequest) error {
	return write(tx.Create(r).Error, "friend request")
}

func SaveFriendRequest(tx *gorm.DB, r *model.FriendRequest) error {
	return write(tx.Save(r).Error, "friend request")
}

func DeleteFriendRequest(tx *gorm.DB, r *model.FriendRequest) error {
	return write(tx.Delete(r).Error, "friend request")
}

// ---- read views ----

// FriendView is one row of a user's friend list.
type FriendView struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	Since    time.Time `json:"since"`
}

// ListFriends returns the users with an active friendship with userID.
func ListFriends(db *gorm.DB, userID int64) ([]FriendView, error) {
	var out []FriendView
	err := db.Table("friendships AS f").
		Select(`a.id AS user_id, a.username AS username, f.created_at AS since`).
		Joins(`JOIN accounts a ON a.id = CASE WHEN f.user_low = ? THEN f.user_high ELSE f.user_low END`, userID).
		Where("(f.user_low = ? OR f.user_high = ?) AND f.status = ?", userID, userID, model.FriendshipActive).
		Order("a.username").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list friends: %w", err)
	}
	return out, nil
}

// ListReceivedRequests returns pending requests addressed to userID, newest first.
func ListReceivedRequests(db *gorm.DB, userID int64) ([]model.FriendRequest, error) {
	var out []model.FriendRequest
	err := db.Where("receiver_id = ? AND status = ?", userID, model.RequestPending).
		Order("sent_at DESC, id DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list received requests: %w", err)
	}
	return out, nil
}

// ListSentRequests returns pending requests sent by userID, newest first.
func ListSentRequests(db *gorm.DB, userID int64) ([]model.FriendRequest, error) {
	var out []model.FriendRequest
	err := db.Where("sender_id = ? AND status = ?", userID, model.RequestPending).
		Order("sent_at DESC, id DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list sent requests: %w", err)
	}
	return out, nil
}

// ListBlocked returns blocked rows placed by userID.
func ListBlocked(db *gorm.DB, userID int64) ([]model.Friendship, error) {
	var out []model.Friendship
	err := db.Where("status = ? AND blocked_by = ?", model.FriendshipBlocked, userID).
		Order("blocked_at DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list blocked: %w", err)
	}
	return out, nil
}

// ListBlockedBy returns blocked rows where someone else blocked userID.
func ListBlockedBy(db *gorm.DB, userID int64) ([]model.Friendship, error) {
	var out []model.Friendship
	err := db.Where("status = ? AND (user_low = ? OR user_high = ?) AND blocked_by <> ?",
		model.FriendshipBlocked, userID, userID, userID).
		Order("blocked_at DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list blocked-by: %w", err)
	}
	return out, nil
}
