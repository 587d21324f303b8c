package social_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fitcircle/fitcircle/audit"
	"github.com/fitcircle/fitcircle/config"
	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social"
	"github.com/fitcircle/fitcircle/social/errs"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/fitcircle/fitcircle/testutil"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var cfg = config.SocialConfig{MessageMaxLen: 20, DescriptionMaxLen: 40, PageSize: 10}

type fixture struct {
	db  *gorm.DB
	svc *social.Service
	ids []int64
}

func setup(t *testing.T, names ...string) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return &fixture{
		db:  db,
		svc: social.NewService(db, notify.NewDBEmitter(), nil, cfg, zap.NewNop()),
		ids: testutil.CreateUsers(t, db, names...),
	}
}

func kindOf(err error) errs.Kind { return errs.KindOf(err) }

func (f *fixture) notifications(t *testing.T, recipient int64, typ model.NotificationType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Notification{}).
		Where("recipient_id = ? AND type = ?", recipient, typ).Count(&n).Error)
	return n
}

func (f *fixture) totalNotifications(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.Notification{}).Count(&n).Error)
	return n
}

func (f *fixture) pair(t *testing.T, a, b int64) *model.Friendship {
	t.Helper()
	p, err := f.svc.Friendship(context.Background(), a, b)
	require.NoError(t, err)
	return p
}

func (f *fixture) sendAndAccept(t *testing.T, a, b int64) {
	t.Helper()
	ctx := context.Background()
	req, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)
	_, err = f.svc.AcceptFriendRequest(ctx, b, req.ID)
	require.NoError(t, err)
}

// ---- friendships ----

func TestSendAndAccept(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	req, err := f.svc.SendFriendRequest(ctx, a, b, "hi")
	require.NoError(t, err)
	assert.Equal(t, social.EntityFriendRequest, req.Entity)
	assert.Equal(t, string(model.RequestPending), req.Status)
	require.NotNil(t, req.NotificationID)
	assert.Equal(t, int64(1), f.notifications(t, b, model.NotifyFriendRequestReceived))

	snap, err := f.svc.AcceptFriendRequest(ctx, b, req.ID)
	require.NoError(t, err)
	assert.Equal(t, social.EntityFriendship, snap.Entity)
	assert.Equal(t, string(model.FriendshipActive), snap.Status)

	p := f.pair(t, a, b)
	require.NotNil(t, p)
	assert.Equal(t, model.FriendshipActive, p.Status)
	assert.Equal(t, p, f.pair(t, b, a))
	assert.Equal(t, int64(1), f.notifications(t, a, model.NotifyFriendRequestAccepted))

	var stored model.FriendRequest
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, model.RequestAccepted, stored.Status)
	assert.NotNil(t, stored.RespondedAt)
}

func TestSendFriendRequest_Guards(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	_, err := f.svc.SendFriendRequest(ctx, a, a, "")
	assert.Equal(t, errs.KindConflict, kindOf(err))

	_, err = f.svc.SendFriendRequest(ctx, a, 9999, "")
	assert.Equal(t, errs.KindNotFound, kindOf(err))

	_, err = f.svc.SendFriendRequest(ctx, a, b, strings.Repeat("x", cfg.MessageMaxLen+1))
	assert.Equal(t, errs.KindValidation, kindOf(err))

	_, err = f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)
	_, err = f.svc.SendFriendRequest(ctx, b, a, "")
	assert.Equal(t, errs.KindConflict, kindOf(err), "pending the other way")
	_, err = f.svc.SendFriendRequest(ctx, a, b, "")
	assert.Equal(t, errs.KindConflict, kindOf(err))

	assert.Equal(t, int64(1), f.totalNotifications(t))
}

func TestSendFriendRequest_SanitisesMessage(t *testing.T) {
	f := setup(t, "alice", "bob")
	req, err := f.svc.SendFriendRequest(context.Background(), f.ids[0], f.ids[1], "  <b>hey</b> &amp; you ")
	require.NoError(t, err)

	var stored model.FriendRequest
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, "hey & you", stored.Message)
}

func TestDeclineTwice(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	req, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)

	_, err = f.svc.DeclineFriendRequest(ctx, a, req.ID)
	assert.Equal(t, errs.KindForbidden, kindOf(err), "sender cannot decline")

	snap, err := f.svc.DeclineFriendRequest(ctx, b, req.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.RequestDeclined), snap.Status)
	assert.Equal(t, int64(1), f.notifications(t, a, model.NotifyFriendRequestDeclined))

	_, err = f.svc.DeclineFriendRequest(ctx, b, req.ID)
	assert.Equal(t, errs.KindConflict, kindOf(err))
	_, err = f.svc.AcceptFriendRequest(ctx, b, req.ID)
	assert.Equal(t, errs.KindConflict, kindOf(err))
	_, err = f.svc.AcceptFriendRequest(ctx, b, 424242)
	assert.Equal(t, errs.KindNotFound, kindOf(err))

	assert.Nil(t, f.pair(t, a, b))
	// A declined request no longer blocks a new one.
	_, err = f.svc.SendFriendRequest(ctx, b, a, "")
	assert.NoError(t, err)
}

func TestCancelFriendRequest(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	req, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)

	_, err = f.svc.CancelFriendRequest(ctx, b, req.ID)
	assert.Equal(t, errs.KindForbidden, kindOf(err))

	snap, err := f.svc.CancelFriendRequest(ctx, a, req.ID)
	require.NoError(t, err)
	assert.True(t, snap.Deleted)
	assert.Nil(t, snap.NotificationID)

	var n int64
	require.NoError(t, f.db.Model(&model.FriendRequest{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, f.totalNotifications(t), "unread notice retracted")

	_, err = f.svc.CancelFriendRequest(ctx, a, req.ID)
	assert.Equal(t, errs.KindNotFound, kindOf(err))
}

func TestCancelFriendRequest_KeepsEarlierNotices(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	first, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)
	_, err = f.svc.DeclineFriendRequest(ctx, b, first.ID)
	require.NoError(t, err)

	second, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)
	require.Equal(t, int64(2), f.notifications(t, b, model.NotifyFriendRequestReceived))

	_, err = f.svc.CancelFriendRequest(ctx, a, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.notifications(t, b, model.NotifyFriendRequestReceived),
		"the notice for the declined request stays")
}

func TestKickFriend(t *testing.T) {
	f := setup(t, "alice", "bob", "carol")
	a, b, c := f.ids[0], f.ids[1], f.ids[2]
	ctx := context.Background()
	f.sendAndAccept(t, a, b)

	_, err := f.svc.KickFriend(ctx, a, a)
	assert.Equal(t, errs.KindForbidden, kindOf(err))
	_, err = f.svc.KickFriend(ctx, a, c)
	assert.Equal(t, errs.KindForbidden, kindOf(err))

	snap, err := f.svc.KickFriend(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, string(model.FriendshipKicked), snap.Status)
	assert.Equal(t, int64(1), f.notifications(t, a, model.NotifyUserKick))

	p := f.pair(t, a, b)
	require.NotNil(t, p.KickedBy)
	assert.Equal(t, b, *p.KickedBy)

	_, err = f.svc.KickFriend(ctx, b, a)
	assert.Equal(t, errs.KindForbidden, kindOf(err))
}

func TestReactivateAfterKick_ClearsEverything(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()
	f.sendAndAccept(t, a, b)
	before := f.pair(t, a, b)

	_, err := f.svc.KickFriend(ctx, a, b)
	require.NoError(t, err)
	f.sendAndAccept(t, b, a)

	p := f.pair(t, a, b)
	assert.Equal(t, before.ID, p.ID, "row reused")
	assert.Equal(t, model.FriendshipActive, p.Status)
	assert.Equal(t, b, p.InitiatorID)
	assert.Equal(t, a, p.CounterpartID)
	assert.Nil(t, p.KickedAt)
	assert.Nil(t, p.KickedBy)
	assert.Nil(t, p.BlockedAt)
	assert.Nil(t, p.BlockedBy)
}

func TestBlockSupersedes(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	_, err := f.svc.BlockUser(ctx, a, a)
	assert.Equal(t, errs.KindForbidden, kindOf(err))
	_, err = f.svc.BlockUser(ctx, a, 9999)
	assert.Equal(t, errs.KindNotFound, kindOf(err))

	snap, err := f.svc.BlockUser(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, string(model.FriendshipBlocked), snap.Status)
	assert.Equal(t, int64(1), f.notifications(t, b, model.NotifyUserBlock))

	_, err = f.svc.SendFriendRequest(ctx, b, a, "")
	assert.Equal(t, errs.KindConflict, kindOf(err))
	_, err = f.svc.BlockUser(ctx, a, b)
	assert.Equal(t, errs.KindConflict, kindOf(err))

	_, err = f.svc.UnblockUser(ctx, b, a)
	assert.Equal(t, errs.KindForbidden, kindOf(err), "only the blocker unblocks")

	snap, err = f.svc.UnblockUser(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, snap.Deleted)
	assert.Nil(t, f.pair(t, a, b))
	assert.Equal(t, int64(1), f.notifications(t, b, model.NotifyUserUnblock))

	_, err = f.svc.UnblockUser(ctx, a, b)
	assert.Equal(t, errs.KindNotFound, kindOf(err))

	// Fresh start.
	f.sendAndAccept(t, b, a)
	assert.Equal(t, model.FriendshipActive, f.pair(t, a, b).Status)
}

func TestBlockDeclinesPendingRequest(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	req, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)
	_, err = f.svc.BlockUser(ctx, a, b)
	require.NoError(t, err)

	var stored model.FriendRequest
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, model.RequestDeclined, stored.Status)
	assert.Nil(t, stored.PendingKey)
	assert.Equal(t, model.FriendshipBlocked, f.pair(t, a, b).Status)

	_, err = f.svc.AcceptFriendRequest(ctx, b, req.ID)
	assert.Equal(t, errs.KindConflict, kindOf(err))
}

func TestAccept_BlockedPairConflicts(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()

	// A blocked pair where a pending request somehow survived must still
	// refuse the accept.
	req, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&model.Friendship{
		InitiatorID: b, CounterpartID: a, Status: model.FriendshipBlocked, BlockedBy: &b,
	}).Error)

	_, err = f.svc.AcceptFriendRequest(ctx, b, req.ID)
	assert.Equal(t, errs.KindConflict, kindOf(err))

	var stored model.FriendRequest
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, model.RequestPending, stored.Status, "rolled back")
	assert.Zero(t, f.notifications(t, a, model.NotifyFriendRequestAccepted))
}

func TestConcurrentAcceptAndBlock(t *testing.T) {
	for i := 0; i < 5; i++ {
		f := setup(t, "alice", "bob")
		a, b := f.ids[0], f.ids[1]
		ctx := context.Background()
		req, err := f.svc.SendFriendRequest(ctx, a, b, "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var acceptErr, blockErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = f.svc.AcceptFriendRequest(ctx, b, req.ID)
		}()
		go func() {
			defer wg.Done()
			_, blockErr = f.svc.BlockUser(ctx, a, b)
		}()
		wg.Wait()

		require.NoError(t, blockErr, "block succeeds from any state but blocked")
		p := f.pair(t, a, b)
		require.NotNil(t, p)
		assert.Equal(t, model.FriendshipBlocked, p.Status)

		var stored model.FriendRequest
		require.NoError(t, f.db.First(&stored, req.ID).Error)
		assert.NotEqual(t, model.RequestPending, stored.Status)
		if acceptErr != nil {
			assert.Equal(t, errs.KindConflict, kindOf(acceptErr))
			assert.Equal(t, model.RequestDeclined, stored.Status)
		} else {
			assert.Equal(t, model.RequestAccepted, stored.Status)
		}
	}
}

type failingEmitter struct{ err error }

func (e failingEmitter) Emit(context.Context, *gorm.DB, notify.Event) (*model.Notification, error) {
	return nil, e.err
}

func TestEmitFailureRollsBack(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()
	req, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)

	broken := social.NewService(f.db, failingEmitter{errors.New("notification store down")}, nil, cfg, zap.NewNop())
	_, err = broken.AcceptFriendRequest(ctx, b, req.ID)
	require.Error(t, err)
	assert.Equal(t, errs.KindUnknown, kindOf(err))

	assert.Nil(t, f.pair(t, a, b), "no friendship without its notification")
	var stored model.FriendRequest
	require.NoError(t, f.db.First(&stored, req.ID).Error)
	assert.Equal(t, model.RequestPending, stored.Status)
}

func TestLockConflictIsConflict(t *testing.T) {
	f := setup(t, "alice", "bob")
	a, b := f.ids[0], f.ids[1]
	ctx := context.Background()
	req, err := f.svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)

	deadlock := fmt.Errorf("notify: insert: %w", &gomysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	svc := social.NewService(f.db, failingEmitter{deadlock}, nil, cfg, zap.NewNop())
	_, err = svc.AcceptFriendRequest(ctx, b, req.ID)
	assert.Equal(t, errs.KindConflict, kindOf(err))
	assert.Nil(t, f.pair(t, a, b))
}

func TestFriendListings(t *testing.T) {
	f := setup(t, "alice", "bob", "carol", "dave")
	a, b, c, d := f.ids[0], f.ids[1], f.ids[2], f.ids[3]
	ctx := context.Background()
	f.sendAndAccept(t, a, c)
	f.sendAndAccept(t, b, a)
	_, err := f.svc.SendFriendRequest(ctx, d, a, "")
	require.NoError(t, err)
	_, err = f.svc.BlockUser(ctx, c, d)
	require.NoError(t, err)

	friends, err := f.svc.Friends(ctx, a)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, "bob", friends[0].Username)
	assert.Equal(t, "carol", friends[1].Username)

	received, err := f.svc.ReceivedRequests(ctx, a)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, d, received[0].SenderID)

	sent, err := f.svc.SentRequests(ctx, d)
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	blocked, err := f.svc.Blocked(ctx, c)
	require.NoError(t, err)
	assert.Len(t, blocked, 1)
	blockedBy, err := f.svc.BlockedBy(ctx, d)
	require.NoError(t, err)
	assert.Len(t, blockedBy, 1)
	blockedBy, err = f.svc.BlockedBy(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, blockedBy)
}

// ---- observers ----

func TestObservers_AuditAndInbox(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ids := testutil.CreateUsers(t, db, "alice", "bob")
	a, b := ids[0], ids[1]
	c := testutil.SetupTestCache(t)

	auditSvc := audit.New(db, zap.NewNop())
	inbox := notify.NewInbox(db, c, cfg, zap.NewNop())
	hc := hook.NewCenter(zap.NewNop())
	social.RegisterObservers(hc, auditSvc, inbox)
	svc := social.NewService(db, notify.NewDBEmitter(), hc, cfg, zap.NewNop())

	ctx := audit.WithTraceID(context.Background(), "trace-1")
	n, err := inbox.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.SendFriendRequest(ctx, a, b, "")
	require.NoError(t, err)
	n, err = inbox.UnreadCount(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "cached zero was dropped")

	_, err = svc.SendFriendRequest(ctx, a, a, "")
	require.Error(t, err)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	auditSvc.Stop(stopCtx)

	var logs []model.AuditLog
	require.NoError(t, db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "send_friend_request", logs[0].Action)
	assert.Equal(t, "trace-1", logs[0].TraceID)
	assert.Empty(t, logs[0].Error)
	assert.Contains(t, string(logs[0].Response), `"status":"pending"`)
	assert.Contains(t, logs[1].Error, "conflict")
}
