package social

import (
	"context"

	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/engine"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/fitcircle/fitcircle/social/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SendFriendRequest creates a pending request from sender to receiver and
// notifies the receiver.
func (s *Service) SendFriendRequest(ctx context.Context, sender, receiver int64, message string) (*Snapshot, error) {
	t := &Transition{
		Action:   ActionSendFriendRequest,
		ActorID:  sender,
		TargetID: ptr(receiver),
		Request:  map[string]interface{}{"receiver_id": receiver, "message": message},
	}
	return s.run(ctx, hook.AfterFriendTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		msg, err := s.cleanMessage(message)
		if err != nil {
			return nil, err
		}
		if sender != receiver {
			ok, err := store.UserExists(tx, receiver)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, notFoundUser(receiver)
			}
		}
		f, err := store.FindPair(tx, sender, receiver)
		if err != nil {
			return nil, err
		}
		pending, err := store.FindPendingFriendRequest(tx, sender, receiver)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckSendFriendRequest(sender, receiver, f, pending != nil); err != nil {
			return nil, err
		}
		req := engine.NewFriendRequest(sender, receiver, msg, s.now())
		if err := store.CreateFriendRequest(tx, req); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyFriendRequestReceived, Recipient: receiver, Actor: sender,
		})
		if err != nil {
			return nil, err
		}
		return friendRequestSnapshot(req), nil
	})
}

// AcceptFriendRequest accepts a pending request addressed to receiver and
// returns the resulting friendship.
func (s *Service) AcceptFriendRequest(ctx context.Context, receiver, requestID int64) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionAcceptFriendRequest,
		ActorID: receiver,
		Request: map[string]interface{}{"request_id": requestID},
	}
	return s.run(ctx, hook.AfterFriendTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		req, err := store.GetFriendRequest(tx, requestID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckRespondFriendRequest(receiver, req); err != nil {
			return nil, err
		}
		t.TargetID = ptr(req.SenderID)
		f, err := store.FindPair(tx, req.SenderID, req.ReceiverID)
		if err != nil {
			return nil, err
		}
		now := s.now()
		f, err = engine.AcceptFriendship(f, req, now)
		if err != nil {
			return nil, err
		}
		engine.Respond(req, model.RequestAccepted, now)
		if err := store.SaveFriendRequest(tx, req); err != nil {
			return nil, err
		}
		if err := store.SaveFriendship(tx, f); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyFriendRequestAccepted, Recipient: req.SenderID, Actor: receiver,
		})
		if err != nil {
			return nil, err
		}
		return friendshipSnapshot(f), nil
	})
}

// DeclineFriendRequest declines a pending request addressed to receiver.
func (s *Service) DeclineFriendRequest(ctx context.Context, receiver, requestID int64) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionDeclineFriendRequest,
		ActorID: receiver,
		Request: map[string]interface{}{"request_id": requestID},
	}
	return s.run(ctx, hook.AfterFriendTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		req, err := store.GetFriendRequest(tx, requestID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckRespondFriendRequest(receiver, req); err != nil {
			return nil, err
		}
		t.TargetID = ptr(req.SenderID)
		engine.Respond(req, model.RequestDeclined, s.now())
		if err := store.SaveFriendRequest(tx, req); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyFriendRequestDeclined, Recipient: req.SenderID, Actor: receiver,
		})
		if err != nil {
			return nil, err
		}
		return friendRequestSnapshot(req), nil
	})
}

// CancelFriendRequest withdraws a pending request sent by sender. The
// receiver's unread notice for it is removed when possible.
func (s *Service) CancelFriendRequest(ctx context.Context, sender, requestID int64) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionCancelFriendRequest,
		ActorID: sender,
		Request: map[string]interface{}{"request_id": requestID},
	}
	return s.run(ctx, hook.AfterFriendTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		req, err := store.GetFriendRequest(tx, requestID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckCancelFriendRequest(sender, req); err != nil {
			return nil, err
		}
		t.TargetID = ptr(req.ReceiverID)
		if err := store.DeleteFriendRequest(tx, req); err != nil {
			return nil, err
		}
		// Savepoint: a failed retract must not take the cancel down with it.
		var removed int64
		err = tx.Transaction(func(sp *gorm.DB) error {
			var err error
			removed, err = notify.Retract(ctx, sp, model.NotifyFriendRequestReceived, req.ReceiverID, sender, req.SentAt)
			return err
		})
		if err != nil {
			s.logger.Warn("retract friend request notification",
				zap.Int64("request_id", req.ID), zap.Error(err))
		} else if removed > 0 {
			t.Touched = append(t.Touched, req.ReceiverID)
		}
		return deleted(friendRequestSnapshot(req)), nil
	})
}

// KickFriend ends the active friendship between actor and friend.
func (s *Service) KickFriend(ctx context.Context, actor, friend int64) (*Snapshot, error) {
	t := &Transition{
		Action:   ActionKickFriend,
		ActorID:  actor,
		TargetID: ptr(friend),
		Request:  map[string]interface{}{"friend_id": friend},
	}
	return s.run(ctx, hook.AfterFriendTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		f, err := store.FindPair(tx, actor, friend)
		if err != nil {
			return nil, err
		}
		f, err = engine.KickFriend(actor, friend, f, s.now())
		if err != nil {
			return nil, err
		}
		if err := store.SaveFriendship(tx, f); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{Type: model.NotifyUserKick, Recipient: friend, Actor: actor})
		if err != nil {
			return nil, err
		}
		return friendshipSnapshot(f), nil
	})
}

// BlockUser blocks target for actor. A pending request between them in
// either direction is declined.
func (s *Service) BlockUser(ctx context.Context, actor, target int64) (*Snapshot, error) {
	t := &Transition{
		Action:   ActionBlockUser,
		ActorID:  actor,
		TargetID: ptr(target),
		Request:  map[string]interface{}{"target_id": target},
	}
	return s.run(ctx, hook.AfterFriendTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		if actor != target {
			ok, err := store.UserExists(tx, target)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, notFoundUser(target)
			}
		}
		f, err := store.FindPair(tx, actor, target)
		if err != nil {
			return nil, err
		}
		now := s.now()
		f, err = engine.BlockUser(actor, target, f, now)
		if err != nil {
			return nil, err
		}
		if err := store.SaveFriendship(tx, f); err != nil {
			return nil, err
		}
		pending, err := store.FindPendingFriendRequest(tx, actor, target)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			engine.Respond(pending, model.RequestDeclined, now)
			if err := store.SaveFriendRequest(tx, pending); err != nil {
				return nil, err
			}
		}
		err = s.emit(ctx, tx, t, notify.Event{Type: model.NotifyUserBlock, Recipient: target, Actor: actor})
		if err != nil {
			return nil, err
		}
		return friendshipSnapshot(f), nil
	})
}

// UnblockUser lifts a block placed by actor. The friendship row is removed;
// the pair starts over with no relationship.
func (s *Service) UnblockUser(ctx context.Context, actor, target int64) (*Snapshot, error) {
	t := &Transition{
		Action:   ActionUnblockUser,
		ActorID:  actor,
		TargetID: ptr(target),
		Request:  map[string]interface{}{"target_id": target},
	}
	return s.run(ctx, hook.AfterFriendTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		f, err := store.FindPair(tx, actor, target)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckUnblockUser(actor, target, f); err != nil {
			return nil, err
		}
		if err := store.DeleteFriendship(tx, f); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{Type: model.NotifyUserUnblock, Recipient: target, Actor: actor})
		if err != nil {
			return nil, err
		}
		return deleted(friendshipSnapshot(f)), nil
	})
}
