package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminID  int64 = 10
	memberID int64 = 20
)

var testGroup = &model.Group{ID: 3, AdminID: adminID, Name: "Morning runners"}

func membership(status model.MembershipStatus) *model.GroupMembership {
	return &model.GroupMembership{ID: 8, UserID: memberID, GroupID: 3, Status: status, StartedAt: now.Add(-48 * time.Hour)}
}

func TestValidateGroupAttrs(t *testing.T) {
	assert.NoError(t, ValidateGroupAttrs("Lifters", "heavy days", 100))
	assert.Equal(t, errs.KindValidation, errs.KindOf(ValidateGroupAttrs("   ", "", 100)))
	assert.Equal(t, errs.KindValidation, errs.KindOf(ValidateGroupAttrs(strings.Repeat("x", GroupNameMaxLen+1), "", 100)))
	assert.Equal(t, errs.KindValidation, errs.KindOf(ValidateGroupAttrs("ok", strings.Repeat("d", 101), 100)))
	assert.NoError(t, ValidateGroupAttrs(strings.Repeat("ü", GroupNameMaxLen), "", 0))
}

func TestNewGroup(t *testing.T) {
	g, m := NewGroup(adminID, "  Cyclists ", "", now)
	assert.Equal(t, "Cyclists", g.Name)
	assert.Equal(t, adminID, g.AdminID)
	assert.Equal(t, adminID, m.UserID)
	assert.Equal(t, model.MembershipAccepted, m.Status)
}

func TestCheckAdmin(t *testing.T) {
	assert.NoError(t, CheckAdmin(adminID, testGroup))
	assert.Equal(t, errs.KindForbidden, errs.KindOf(CheckAdmin(memberID, testGroup)))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(CheckAdmin(adminID, nil)))
}

func TestCheckSendJoinRequest(t *testing.T) {
	assert.NoError(t, CheckSendJoinRequest(testGroup, nil, false))
	assert.NoError(t, CheckSendJoinRequest(testGroup, membership(model.MembershipKicked), false))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(CheckSendJoinRequest(nil, nil, false)))
	assert.Equal(t, errs.KindConflict, errs.KindOf(CheckSendJoinRequest(testGroup, membership(model.MembershipAccepted), false)))
	assert.Equal(t, errs.KindConflict, errs.KindOf(CheckSendJoinRequest(testGroup, membership(model.MembershipBlocked), false)))
	assert.Equal(t, errs.KindConflict, errs.KindOf(CheckSendJoinRequest(testGroup, nil, true)))
}

func TestCheckRespondJoinRequest(t *testing.T) {
	req := NewJoinRequest(memberID, testGroup.ID, "hi", now)
	assert.NoError(t, CheckRespondJoinRequest(adminID, testGroup, req))
	assert.Equal(t, errs.KindForbidden, errs.KindOf(CheckRespondJoinRequest(memberID, testGroup, req)))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(CheckRespondJoinRequest(adminID, testGroup, nil)))

	RespondJoin(req, model.RequestDeclined, now)
	assert.Equal(t, errs.KindConflict, errs.KindOf(CheckRespondJoinRequest(adminID, testGroup, req)))
}

func TestAcceptMembership(t *testing.T) {
	req := NewJoinRequest(memberID, testGroup.ID, "", now)

	m, err := AcceptMembership(nil, req, now)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipAccepted, m.Status)
	assert.Equal(t, memberID, m.UserID)
	assert.Equal(t, testGroup.ID, m.GroupID)

	kicked := membership(model.MembershipKicked)
	earlier := now.Add(-time.Hour)
	kicked.KickedAt, kicked.BlockedAt = &earlier, &earlier
	m, err = AcceptMembership(kicked, req, now)
	require.NoError(t, err)
	assert.Equal(t, int64(8), m.ID)
	assert.Equal(t, model.MembershipAccepted, m.Status)
	assert.Equal(t, now, m.StartedAt)
	assert.Nil(t, m.KickedAt)
	assert.Nil(t, m.BlockedAt)

	_, err = AcceptMembership(membership(model.MembershipBlocked), req, now)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	_, err = AcceptMembership(membership(model.MembershipAccepted), req, now)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestKickMember(t *testing.T) {
	m, err := KickMember(adminID, memberID, testGroup, membership(model.MembershipAccepted), now)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipKicked, m.Status)
	assert.Equal(t, now, *m.KickedAt)

	_, err = KickMember(memberID, memberID, testGroup, membership(model.MembershipAccepted), now)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err), "non-admin")
	_, err = KickMember(adminID, adminID, testGroup, membership(model.MembershipAccepted), now)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err), "admin target")
	_, err = KickMember(adminID, memberID, testGroup, nil, now)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err), "no membership")
	_, err = KickMember(adminID, memberID, testGroup, membership(model.MembershipKicked), now)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err), "already kicked")
}

func TestBlockMember(t *testing.T) {
	m, err := BlockMember(adminID, memberID, testGroup, nil, now)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipBlocked, m.Status)
	assert.Equal(t, testGroup.ID, m.GroupID)
	assert.Equal(t, now, *m.BlockedAt)

	for _, s := range []model.MembershipStatus{model.MembershipAccepted, model.MembershipKicked} {
		m, err := BlockMember(adminID, memberID, testGroup, membership(s), now)
		require.NoError(t, err, s)
		assert.Equal(t, model.MembershipBlocked, m.Status)
	}

	_, err = BlockMember(adminID, memberID, testGroup, membership(model.MembershipBlocked), now)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	_, err = BlockMember(adminID, adminID, testGroup, nil, now)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
	_, err = BlockMember(memberID, 30, testGroup, nil, now)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
}

func TestCheckUnblockMember(t *testing.T) {
	assert.NoError(t, CheckUnblockMember(adminID, memberID, testGroup, membership(model.MembershipBlocked)))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(CheckUnblockMember(adminID, memberID, testGroup, nil)))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(CheckUnblockMember(adminID, memberID, testGroup, membership(model.MembershipKicked))))
	assert.Equal(t, errs.KindForbidden, errs.KindOf(CheckUnblockMember(memberID, memberID, testGroup, membership(model.MembershipBlocked))))
}

func TestCheckExitGroup(t *testing.T) {
	assert.Equal(t, errs.KindForbidden, errs.KindOf(CheckExitGroup(adminID, testGroup, membership(model.MembershipAccepted))))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(CheckExitGroup(memberID, testGroup, nil)))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(CheckExitGroup(memberID, nil, nil)))
	for _, s := range []model.MembershipStatus{model.MembershipAccepted, model.MembershipKicked, model.MembershipBlocked} {
		assert.NoError(t, CheckExitGroup(memberID, testGroup, membership(s)), s)
	}
}

func TestUnknownMembershipStatus(t *testing.T) {
	_, err := KickMember(adminID, memberID, testGroup, membership("pending"), now)
	var unknown *model.UnknownStatusError
	assert.ErrorAs(t, err, &unknown)
}
