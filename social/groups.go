package social

import (
	"context"

	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/engine"
	"github.com/fitcircle/fitcircle/social/errs"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/fitcircle/fitcircle/social/store"
	"gorm.io/gorm"
)

// GroupAttrs are the editable fields of a group.
type GroupAttrs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) cleanAttrs(a GroupAttrs) (GroupAttrs, error) {
	out := GroupAttrs{Name: s.cleanText(a.Name), Description: s.cleanText(a.Description)}
	if err := engine.ValidateGroupAttrs(out.Name, out.Description, s.cfg.DescriptionMaxLen); err != nil {
		return GroupAttrs{}, err
	}
	return out, nil
}

// CreateGroup creates a group administered by admin, together with the
// admin's accepted membership.
func (s *Service) CreateGroup(ctx context.Context, admin int64, attrs GroupAttrs) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionCreateGroup,
		ActorID: admin,
		Request: map[string]interface{}{"name": attrs.Name, "description": attrs.Description},
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		clean, err := s.cleanAttrs(attrs)
		if err != nil {
			return nil, err
		}
		g, m := engine.NewGroup(admin, clean.Name, clean.Description, s.now())
		if err := store.CreateGroup(tx, g, m); err != nil {
			return nil, err
		}
		t.GroupID = ptr(g.ID)
		return groupSnapshot(g), nil
	})
}

// UpdateGroup replaces the name and description of a group.
func (s *Service) UpdateGroup(ctx context.Context, admin, groupID int64, attrs GroupAttrs) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionUpdateGroup,
		ActorID: admin,
		GroupID: ptr(groupID),
		Request: map[string]interface{}{"name": attrs.Name, "description": attrs.Description},
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		g, err := store.FindGroup(tx, groupID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckAdmin(admin, g); err != nil {
			return nil, err
		}
		clean, err := s.cleanAttrs(attrs)
		if err != nil {
			return nil, err
		}
		g.Name, g.Description = clean.Name, clean.Description
		if err := store.SaveGroup(tx, g); err != nil {
			return nil, err
		}
		return groupSnapshot(g), nil
	})
}

// DeleteGroup removes a group with all of its memberships and join requests.
func (s *Service) DeleteGroup(ctx context.Context, admin, groupID int64) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionDeleteGroup,
		ActorID: admin,
		GroupID: ptr(groupID),
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		g, err := store.FindGroup(tx, groupID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckAdmin(admin, g); err != nil {
			return nil, err
		}
		if err := store.DeleteGroup(tx, g); err != nil {
			return nil, err
		}
		return deleted(groupSnapshot(g)), nil
	})
}

// SendJoinRequest asks to join a group and notifies its admin.
func (s *Service) SendJoinRequest(ctx context.Context, user, groupID int64, message string) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionSendJoinRequest,
		ActorID: user,
		GroupID: ptr(groupID),
		Request: map[string]interface{}{"message": message},
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		msg, err := s.cleanMessage(message)
		if err != nil {
			return nil, err
		}
		g, err := store.FindGroup(tx, groupID)
		if err != nil {
			return nil, err
		}
		if g == nil {
			return nil, errs.NotFound("group not found")
		}
		m, err := store.FindMembership(tx, user, groupID)
		if err != nil {
			return nil, err
		}
		pending, err := store.FindPendingJoinRequest(tx, user, groupID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckSendJoinRequest(g, m, pending != nil); err != nil {
			return nil, err
		}
		t.TargetID = ptr(g.AdminID)
		req := engine.NewJoinRequest(user, groupID, msg, s.now())
		if err := store.CreateJoinRequest(tx, req); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyGroupRequestReceived, Recipient: g.AdminID, Actor: user, GroupID: ptr(groupID),
		})
		if err != nil {
			return nil, err
		}
		return joinRequestSnapshot(req), nil
	})
}

// loadJoinRequest returns the request and its group, checking that actor
// may answer it.
func loadJoinRequest(tx *gorm.DB, actor, requestID int64) (*model.GroupAddRequest, *model.Group, error) {
	req, err := store.GetJoinRequest(tx, requestID)
	if err != nil {
		return nil, nil, err
	}
	var g *model.Group
	if req != nil {
		if g, err = store.FindGroup(tx, req.GroupID); err != nil {
			return nil, nil, err
		}
	}
	if err := engine.CheckRespondJoinRequest(actor, g, req); err != nil {
		return nil, nil, err
	}
	return req, g, nil
}

// AcceptJoinRequest admits the requesting user. A kicked member is
// reactivated; a blocked one cannot be admitted.
func (s *Service) AcceptJoinRequest(ctx context.Context, admin, requestID int64) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionAcceptJoinRequest,
		ActorID: admin,
		Request: map[string]interface{}{"request_id": requestID},
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		req, g, err := loadJoinRequest(tx, admin, requestID)
		if err != nil {
			return nil, err
		}
		t.TargetID, t.GroupID = ptr(req.UserID), ptr(g.ID)
		m, err := store.FindMembership(tx, req.UserID, g.ID)
		if err != nil {
			return nil, err
		}
		now := s.now()
		m, err = engine.AcceptMembership(m, req, now)
		if err != nil {
			return nil, err
		}
		engine.RespondJoin(req, model.RequestAccepted, now)
		if err := store.SaveJoinRequest(tx, req); err != nil {
			return nil, err
		}
		if err := store.SaveMembership(tx, m); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyGroupRequestAccepted, Recipient: req.UserID, Actor: admin, GroupID: ptr(g.ID),
		})
		if err != nil {
			return nil, err
		}
		return membershipSnapshot(m), nil
	})
}

// DeclineJoinRequest turns the requesting user away.
func (s *Service) DeclineJoinRequest(ctx context.Context, admin, requestID int64) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionDeclineJoinRequest,
		ActorID: admin,
		Request: map[string]interface{}{"request_id": requestID},
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		req, g, err := loadJoinRequest(tx, admin, requestID)
		if err != nil {
			return nil, err
		}
		t.TargetID, t.GroupID = ptr(req.UserID), ptr(g.ID)
		engine.RespondJoin(req, model.RequestDeclined, s.now())
		if err := store.SaveJoinRequest(tx, req); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyGroupRequestDeclined, Recipient: req.UserID, Actor: admin, GroupID: ptr(g.ID),
		})
		if err != nil {
			return nil, err
		}
		return joinRequestSnapshot(req), nil
	})
}

// KickMember removes an accepted member. The row is kept as kicked so the
// user can ask to join again.
func (s *Service) KickMember(ctx context.Context, admin, groupID, user int64) (*Snapshot, error) {
	t := &Transition{
		Action:   ActionKickMember,
		ActorID:  admin,
		TargetID: ptr(user),
		GroupID:  ptr(groupID),
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		g, err := store.FindGroup(tx, groupID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckAdmin(admin, g); err != nil {
			return nil, err
		}
		m, err := store.FindMembership(tx, user, groupID)
		if err != nil {
			return nil, err
		}
		m, err = engine.KickMember(admin, user, g, m, s.now())
		if err != nil {
			return nil, err
		}
		if err := store.SaveMembership(tx, m); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyGroupKick, Recipient: user, Actor: admin, GroupID: ptr(groupID),
		})
		if err != nil {
			return nil, err
		}
		return membershipSnapshot(m), nil
	})
}

// BlockMember bars user from the group whatever their current status and
// declines their pending join request, if any.
func (s *Service) BlockMember(ctx context.Context, admin, groupID, user int64) (*Snapshot, error) {
	t := &Transition{
		Action:   ActionBlockMember,
		ActorID:  admin,
		TargetID: ptr(user),
		GroupID:  ptr(groupID),
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		g, err := store.FindGroup(tx, groupID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckAdmin(admin, g); err != nil {
			return nil, err
		}
		if user != g.AdminID {
			ok, err := store.UserExists(tx, user)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, notFoundUser(user)
			}
		}
		m, err := store.FindMembership(tx, user, groupID)
		if err != nil {
			return nil, err
		}
		now := s.now()
		m, err = engine.BlockMember(admin, user, g, m, now)
		if err != nil {
			return nil, err
		}
		if err := store.SaveMembership(tx, m); err != nil {
			return nil, err
		}
		pending, err := store.FindPendingJoinRequest(tx, user, groupID)
		if err != nil {
			return nil, err
		}
		if pending != nil {
			engine.RespondJoin(pending, model.RequestDeclined, now)
			if err := store.SaveJoinRequest(tx, pending); err != nil {
				return nil, err
			}
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyGroupBlock, Recipient: user, Actor: admin, GroupID: ptr(groupID),
		})
		if err != nil {
			return nil, err
		}
		return membershipSnapshot(m), nil
	})
}

// UnblockMember lifts a group block by deleting the membership row.
func (s *Service) UnblockMember(ctx context.Context, admin, groupID, user int64) (*Snapshot, error) {
	t := &Transition{
		Action:   ActionUnblockMember,
		ActorID:  admin,
		TargetID: ptr(user),
		GroupID:  ptr(groupID),
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		g, err := store.FindGroup(tx, groupID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckAdmin(admin, g); err != nil {
			return nil, err
		}
		m, err := store.FindMembership(tx, user, groupID)
		if err != nil {
			return nil, err
		}
		if err := engine.CheckUnblockMember(admin, user, g, m); err != nil {
			return nil, err
		}
		if err := store.DeleteMembership(tx, m); err != nil {
			return nil, err
		}
		err = s.emit(ctx, tx, t, notify.Event{
			Type: model.NotifyGroupUnblock, Recipient: user, Actor: admin, GroupID: ptr(groupID),
		})
		if err != nil {
			return nil, err
		}
		return deleted(membershipSnapshot(m)), nil
	})
}

// ExitGroup drops user's membership, whatever its status. The admin cannot
// leave their own group.
func (s *Service) ExitGroup(ctx context.Context, user, groupID int64) (*Snapshot, error) {
	t := &Transition{
		Action:  ActionExitGroup,
		ActorID: user,
		GroupID: ptr(groupID),
	}
	return s.run(ctx, hook.AfterGroupTransition, t, func(tx *gorm.DB) (*Snapshot, error) {
		g, err := store.FindGroup(tx, groupID)
		if err != nil {
			return nil, err
		}
		var m *model.GroupMembership
		if g != nil {
			if m, err = store.FindMembership(tx, user, groupID); err != nil {
				return nil, err
			}
		}
		if err := engine.CheckExitGroup(user, g, m); err != nil {
			return nil, err
		}
		if err := store.DeleteMembership(tx, m); err != nil {
			return nil, err
		}
		return deleted(membershipSnapshot(m)), nil
	})
}
