package social

import (
	"context"
	"fmt"

	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/engine"
	"github.com/fitcircle/fitcircle/social/errs"
	"github.com/fitcircle/fitcircle/social/store"
)

// Friends lists user's active friends.
func (s *Service) Friends(ctx context.Context, user int64) ([]store.FriendView, error) {
	return store.ListFriends(s.db.WithContext(ctx), user)
}

func (s *Service) ReceivedRequests(ctx context.Context, user int64) ([]model.FriendRequest, error) {
	return store.ListReceivedRequests(s.db.WithContext(ctx), user)
}

func (s *Service) SentRequests(ctx context.Context, user int64) ([]model.FriendRequest, error) {
	return store.ListSentRequests(s.db.WithContext(ctx), user)
}

// Blocked lists the blocks user has placed.
func (s *Service) Blocked(ctx context.Context, user int64) ([]model.Friendship, error) {
	return store.ListBlocked(s.db.WithContext(ctx), user)
}

// BlockedBy lists the blocks other users have placed on user.
func (s *Service) BlockedBy(ctx context.Context, user int64) ([]model.Friendship, error) {
	return store.ListBlockedBy(s.db.WithContext(ctx), user)
}

// Friendship returns the row for the pair, or nil.
func (s *Service) Friendship(ctx context.Context, a, b int64) (*model.Friendship, error) {
	return store.FindPair(s.db.WithContext(ctx), a, b)
}

// GroupDetail is a group as seen by one viewer.
type GroupDetail struct {
	model.Group
	AdminName   string                  `json:"admin_name"`
	MemberCount int64                   `json:"member_count"`
	IsAdmin     bool                    `json:"is_admin"`
	Membership  *model.MembershipStatus `json:"membership,omitempty"`
}

// GroupDetail is visible to any signed-in user.
func (s *Service) GroupDetail(ctx context.Context, viewer, groupID int64) (*GroupDetail, error) {
	db := s.db.WithContext(ctx)
	g, err := store.FindGroup(db, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errs.NotFound("group not found")
	}
	out := &GroupDetail{Group: *g, IsAdmin: g.AdminID == viewer}
	var admin model.Account
	if err := db.Select("username").Take(&admin, g.AdminID).Error; err == nil {
		out.AdminName = admin.Username
	}
	if out.MemberCount, err = store.CountMembers(db, g.ID); err != nil {
		return nil, err
	}
	m, err := store.FindMembership(db, viewer, g.ID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		status := m.Status
		out.Membership = &status
	}
	return out, nil
}

// Members lists the accepted members of a group other than its admin. Only
// accepted members may look.
func (s *Service) Members(ctx context.Context, viewer, groupID int64) ([]store.MemberView, error) {
	db := s.db.WithContext(ctx)
	g, err := store.FindGroup(db, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errs.NotFound("group not found")
	}
	m, err := store.FindMembership(db, viewer, groupID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Status != model.MembershipAccepted {
		return nil, errs.Forbidden("only members can see the member list")
	}
	return store.ListMembers(db, g)
}

// PendingJoinRequests is admin only.
func (s *Service) PendingJoinRequests(ctx context.Context, admin, groupID int64) ([]model.GroupAddRequest, error) {
	db := s.db.WithContext(ctx)
	g, err := store.FindGroup(db, groupID)
	if err != nil {
		return nil, err
	}
	if err := engine.CheckAdmin(admin, g); err != nil {
		return nil, err
	}
	return store.ListPendingJoinRequests(db, groupID)
}

// BlockedMembers is admin only.
func (s *Service) BlockedMembers(ctx context.Context, admin, groupID int64) ([]store.MemberView, error) {
	db := s.db.WithContext(ctx)
	g, err := store.FindGroup(db, groupID)
	if err != nil {
		return nil, err
	}
	if err := engine.CheckAdmin(admin, g); err != nil {
		return nil, err
	}
	return store.ListBlockedMembers(db, g)
}

// MyGroups lists the groups user hosts or has joined.
func (s *Service) MyGroups(ctx context.Context, user int64) ([]model.Group, error) {
	return store.ListGroupsOf(s.db.WithContext(ctx), user)
}

// Stats is a row count summary for the admin metrics endpoint and the stats log.
type Stats struct {
	Users       int64 `json:"users"`
	Friendships int64 `json:"friendships"`
	Groups      int64 `json:"groups"`
	Pending     int64 `json:"pending_requests"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	out := &Stats{}
	counts := []struct {
		dst   *int64
		model interface{}
		where []interface{}
	}{
		{&out.Users, &model.Account{}, nil},
		{&out.Friendships, &model.Friendship{}, []interface{}{"status = ?", model.FriendshipActive}},
		{&out.Groups, &model.Group{}, nil},
		{&out.Pending, &model.FriendRequest{}, []interface{}{"status = ?", model.RequestPending}},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if len(c.where) > 0 {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("social: stats: %w", err)
		}
	}
	return out, nil
}
