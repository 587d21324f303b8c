// Package engine decides relationship and membership transitions.
//
// Every function here is pure: it takes the current rows (nil when absent),
// the acting user and a clock reading, and either returns the row to persist
// or an *errs.Error explaining the rejection. Nothing touches storage.
package engine

import (
	"time"

	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/errs"
)

func unknownFriendship(s model.FriendshipStatus) error {
	return &model.UnknownStatusError{Kind: "friendship", Value: string(s)}
}

func unknownRequest(s model.RequestStatus) error {
	return &model.UnknownStatusError{Kind: "request", Value: string(s)}
}

// CheckSendFriendRequest validates a new request sender -> receiver given the
// pair's friendship row and whether a pending request exists either way.
func CheckSendFriendRequest(sender, receiver int64, f *model.Friendship, pendingExists bool) error {
	if sender == receiver {
		return errs.Conflict("cannot send a friend request to yourself")
	}
	if f != nil {
		switch f.Status {
		case model.FriendshipActive:
			return errs.Conflict("already friends")
		case model.FriendshipBlocked:
			return errs.Conflict("this relationship is blocked")
		case model.FriendshipKicked:
		default:
			return unknownFriendship(f.Status)
		}
	}
	if pendingExists {
		return errs.Conflict("a pending friend request already exists between these users")
	}
	return nil
}

// NewFriendRequest builds the pending row for a validated send.
func NewFriendRequest(sender, receiver int64, message string, now time.Time) *model.FriendRequest {
	return &model.FriendRequest{
		SenderID:   sender,
		ReceiverID: receiver,
		Status:     model.RequestPending,
		Message:    message,
		SentAt:     now,
	}
}

func checkPending(s model.RequestStatus) error {
	switch s {
	case model.RequestPending:
		return nil
	case model.RequestAccepted:
		return errs.Conflict("request was already accepted")
	case model.RequestDeclined:
		return errs.Conflict("request was already declined")
	default:
		return unknownRequest(s)
	}
}

// CheckRespondFriendRequest guards accept and decline: only the receiver may
// answer, and only while the request is pending.
func CheckRespondFriendRequest(actor int64, req *model.FriendRequest) error {
	if req == nil {
		return errs.NotFound("friend request not found")
	}
	if req.ReceiverID != actor {
		return errs.Forbidden("friend request is not addressed to you")
	}
	return checkPending(req.Status)
}

// CheckCancelFriendRequest guards cancel: only the sender, only while pending.
func CheckCancelFriendRequest(actor int64, req *model.FriendRequest) error {
	if req == nil {
		return errs.NotFound("friend request not found")
	}
	if req.SenderID != actor {
		return errs.Forbidden("only the sender can cancel a friend request")
	}
	return checkPending(req.Status)
}

// Respond marks req answered.
func Respond(req *model.FriendRequest, status model.RequestStatus, now time.Time) {
	req.Status = status
	req.RespondedAt = &now
}

// AcceptFriendship returns the friendship row produced by accepting req.
// A missing row is created active. A kicked row is reactivated in place with
// every kick/block field cleared and the endpoints re-anchored to the request.
// Active and blocked rows reject the accept; blocking wins.
func AcceptFriendship(f *model.Friendship, req *model.FriendRequest, now time.Time) (*model.Friendship, error) {
	if f == nil {
		return &model.Friendship{
			InitiatorID:   req.SenderID,
			CounterpartID: req.ReceiverID,
			Status:        model.FriendshipActive,
			CreatedAt:     now,
		}, nil
	}
	switch f.Status {
	case model.FriendshipKicked:
		f.Status = model.FriendshipActive
		f.InitiatorID = req.SenderID
		f.CounterpartID = req.ReceiverID
		f.KickedAt, f.KickedBy = nil, nil
		f.BlockedAt, f.BlockedBy = nil, nil
		return f, nil
	case model.FriendshipActive:
		return nil, errs.Conflict("already friends")
	case model.FriendshipBlocked:
		return nil, errs.Conflict("this relationship is blocked")
	default:
		return nil, unknownFriendship(f.Status)
	}
}

// KickFriend ends an active friendship. The row is kept so a later accepted
// request reactivates it.
func KickFriend(actor, friend int64, f *model.Friendship, now time.Time) (*model.Friendship, error) {
	if actor == friend {
		return nil, errs.Forbidden("cannot kick yourself")
	}
	if f == nil {
		return nil, errs.Forbidden("you are not friends with this user")
	}
	switch f.Status {
	case model.FriendshipActive:
		f.Status = model.FriendshipKicked
		f.KickedAt = &now
		f.KickedBy = &actor
		return f, nil
	case model.FriendshipKicked, model.FriendshipBlocked:
		return nil, errs.Forbidden("you are not friends with this user")
	default:
		return nil, unknownFriendship(f.Status)
	}
}

// BlockUser moves the pair to blocked from any state except blocked. With no
// row, a blocked row is created directly.
func BlockUser(actor, target int64, f *model.Friendship, now time.Time) (*model.Friendship, error) {
	if actor == target {
		return nil, errs.Forbidden("cannot block yourself")
	}
	if f == nil {
		return &model.Friendship{
			InitiatorID:   actor,
			CounterpartID: target,
			Status:        model.FriendshipBlocked,
			CreatedAt:     now,
			BlockedAt:     &now,
			BlockedBy:     &actor,
		}, nil
	}
	switch f.Status {
	case model.FriendshipActive, model.FriendshipKicked:
		f.Status = model.FriendshipBlocked
		f.BlockedAt = &now
		f.BlockedBy = &actor
		return f, nil
	case model.FriendshipBlocked:
		return nil, errs.Conflict("this relationship is already blocked")
	default:
		return nil, unknownFriendship(f.Status)
	}
}

// CheckUnblockUser allows only the user who placed the block to lift it.
// The caller deletes the row on success.
func CheckUnblockUser(actor, target int64, f *model.Friendship) error {
	if actor == target {
		return errs.Forbidden("cannot unblock yourself")
	}
	if f == nil {
		return errs.NotFound("user is not blocked")
	}
	switch f.Status {
	case model.FriendshipBlocked:
	case model.FriendshipActive, model.FriendshipKicked:
		return errs.NotFound("user is not blocked")
	default:
		return unknownFriendship(f.Status)
	}
	if f.BlockedBy == nil || *f.BlockedBy != actor {
		return errs.Forbidden("only the user who blocked can unblock")
	}
	return nil
}
