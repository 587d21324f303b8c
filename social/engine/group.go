package engine

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/errs"
)

// GroupNameMaxLen matches the size of the name column.
const GroupNameMaxLen = 50

func unknownMembership(s model.MembershipStatus) error {
	return &model.UnknownStatusError{Kind: "membership", Value: string(s)}
}

// ValidateGroupAttrs checks name and description after sanitising.
func ValidateGroupAttrs(name, description string, descMax int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.Validation("group name is required")
	}
	if utf8.RuneCountInString(name) > GroupNameMaxLen {
		return errs.Validation("group name must be at most %d characters", GroupNameMaxLen)
	}
	if descMax > 0 && utf8.RuneCountInString(description) > descMax {
		return errs.Validation("description must be at most %d characters", descMax)
	}
	return nil
}

// NewGroup returns the group and the admin's accepted membership. The caller
// sets GroupID on the membership once the group has an ID.
func NewGroup(admin int64, name, description string, now time.Time) (*model.Group, *model.GroupMembership) {
	g := &model.Group{
		AdminID:     admin,
		Name:        strings.TrimSpace(name),
		Description: description,
		CreatedAt:   now,
	}
	m := &model.GroupMembership{
		UserID:    admin,
		Status:    model.MembershipAccepted,
		StartedAt: now,
	}
	return g, m
}

// CheckAdmin requires g to exist and actor to be its admin.
func CheckAdmin(actor int64, g *model.Group) error {
	if g == nil {
		return errs.NotFound("group not found")
	}
	if g.AdminID != actor {
		return errs.Forbidden("only the group admin can do this")
	}
	return nil
}

// CheckSendJoinRequest rejects a join request when the user is already a
// member, is blocked, or already has one pending. Kicked users may ask again.
func CheckSendJoinRequest(g *model.Group, m *model.GroupMembership, pendingExists bool) error {
	if g == nil {
		return errs.NotFound("group not found")
	}
	if m != nil {
		switch m.Status {
		case model.MembershipAccepted:
			return errs.Conflict("already a member of this group")
		case model.MembershipBlocked:
			return errs.Conflict("you are blocked from this group")
		case model.MembershipKicked:
		default:
			return unknownMembership(m.Status)
		}
	}
	if pendingExists {
		return errs.Conflict("a join request for this group is already pending")
	}
	return nil
}

// NewJoinRequest builds the pending row for a validated send.
func NewJoinRequest(user, group int64, message string, now time.Time) *model.GroupAddRequest {
	return &model.GroupAddRequest{
		UserID:  user,
		GroupID: group,
		Status:  model.RequestPending,
		Message: message,
		SentAt:  now,
	}
}

// CheckRespondJoinRequest guards accept and decline of a join request.
func CheckRespondJoinRequest(actor int64, g *model.Group, req *model.GroupAddRequest) error {
	if req == nil {
		return errs.NotFound("join request not found")
	}
	if err := CheckAdmin(actor, g); err != nil {
		return err
	}
	return checkPending(req.Status)
}

// RespondJoin marks req answered.
func RespondJoin(req *model.GroupAddRequest, status model.RequestStatus, now time.Time) {
	req.Status = status
	req.RespondedAt = &now
}

// AcceptMembership returns the membership produced by accepting req: a new
// accepted row, or a kicked row reactivated with its timestamps reset.
func AcceptMembership(m *model.GroupMembership, req *model.GroupAddRequest, now time.Time) (*model.GroupMembership, error) {
	if m == nil {
		return &model.GroupMembership{
			UserID:    req.UserID,
			GroupID:   req.GroupID,
			Status:    model.MembershipAccepted,
			StartedAt: now,
		}, nil
	}
	switch m.Status {
	case model.MembershipKicked:
		m.Status = model.MembershipAccepted
		m.StartedAt = now
		m.KickedAt = nil
		m.BlockedAt = nil
		return m, nil
	case model.MembershipAccepted:
		return nil, errs.Conflict("already a member of this group")
	case model.MembershipBlocked:
		return nil, errs.Conflict("user is blocked from this group")
	default:
		return nil, unknownMembership(m.Status)
	}
}

func checkNotAdminTarget(g *model.Group, target int64, verb string) error {
	if target == g.AdminID {
		return errs.Forbidden("the group admin cannot be %s", verb)
	}
	return nil
}

// KickMember moves an accepted member to kicked.
func KickMember(actor, target int64, g *model.Group, m *model.GroupMembership, now time.Time) (*model.GroupMembership, error) {
	if err := CheckAdmin(actor, g); err != nil {
		return nil, err
	}
	if err := checkNotAdminTarget(g, target, "kicked"); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errs.Forbidden("user is not an active member of this group")
	}
	switch m.Status {
	case model.MembershipAccepted:
		m.Status = model.MembershipKicked
		m.KickedAt = &now
		return m, nil
	case model.MembershipKicked, model.MembershipBlocked:
		return nil, errs.Forbidden("user is not an active member of this group")
	default:
		return nil, unknownMembership(m.Status)
	}
}

// BlockMember blocks target from the group whatever their current status,
// creating the membership row when absent.
func BlockMember(actor, target int64, g *model.Group, m *model.GroupMembership, now time.Time) (*model.GroupMembership, error) {
	if err := CheckAdmin(actor, g); err != nil {
		return nil, err
	}
	if err := checkNotAdminTarget(g, target, "blocked"); err != nil {
		return nil, err
	}
	if m == nil {
		return &model.GroupMembership{
			UserID:    target,
			GroupID:   g.ID,
			Status:    model.MembershipBlocked,
			StartedAt: now,
			BlockedAt: &now,
		}, nil
	}
	switch m.Status {
	case model.MembershipAccepted, model.MembershipKicked:
		m.Status = model.MembershipBlocked
		m.BlockedAt = &now
		return m, nil
	case model.MembershipBlocked:
		return nil, errs.Conflict("user is already blocked from this group")
	default:
		return nil, unknownMembership(m.Status)
	}
}

// CheckUnblockMember requires a blocked membership. The caller deletes it.
func CheckUnblockMember(actor, target int64, g *model.Group, m *model.GroupMembership) error {
	if err := CheckAdmin(actor, g); err != nil {
		return err
	}
	if err := checkNotAdminTarget(g, target, "unblocked"); err != nil {
		return err
	}
	if m == nil {
		return errs.NotFound("user is not blocked from this group")
	}
	switch m.Status {
	case model.MembershipBlocked:
		return nil
	case model.MembershipAccepted, model.MembershipKicked:
		return errs.NotFound("user is not blocked from this group")
	default:
		return unknownMembership(m.Status)
	}
}

// CheckExitGroup lets anyone but the admin drop their membership, whatever
// its status.
func CheckExitGroup(user int64, g *model.Group, m *model.GroupMembership) error {
	if g == nil {
		return errs.NotFound("group not found")
	}
	if user == g.AdminID {
		return errs.Forbidden("the group admin cannot exit; delete the group instead")
	}
	if m == nil {
		return errs.NotFound("you are not a member of this group")
	}
	return nil
}
