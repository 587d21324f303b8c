// Package social runs relationship and membership transitions.
//
// Each mutating operation is one database transaction: the rows it reads, the
// rows it writes and the notification it emits commit or roll back together.
// After the transaction, a Transition describing the outcome is passed to the
// hook center for audit logging and cache invalidation.
package social

import (
	"context"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fitcircle/fitcircle/config"
	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/errs"
	"github.com/fitcircle/fitcircle/social/notify"
	"github.com/fitcircle/fitcircle/social/store"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Action names an operation in transitions and audit logs.
type Action string

const (
	ActionSendFriendRequest    Action = "send_friend_request"
	ActionAcceptFriendRequest  Action = "accept_friend_request"
	ActionDeclineFriendRequest Action = "decline_friend_request"
	ActionCancelFriendRequest  Action = "cancel_friend_request"
	ActionKickFriend           Action = "kick_friend"
	ActionBlockUser            Action = "block_user"
	ActionUnblockUser          Action = "unblock_user"
	ActionCreateGroup          Action = "create_group"
	ActionUpdateGroup          Action = "update_group"
	ActionDeleteGroup          Action = "delete_group"
	ActionSendJoinRequest      Action = "send_join_request"
	ActionAcceptJoinRequest    Action = "accept_join_request"
	ActionDeclineJoinRequest   Action = "decline_join_request"
	ActionKickMember           Action = "kick_member"
	ActionBlockMember          Action = "block_member"
	ActionUnblockMember        Action = "unblock_member"
	ActionExitGroup            Action = "exit_group"
)

// Transition is handed to hook observers once an operation has finished.
// Err is nil for a committed transition.
type Transition struct {
	Action       Action
	ActorID      int64
	TargetID     *int64
	GroupID      *int64
	Request      map[string]interface{}
	Snapshot     *Snapshot
	Notification *model.Notification
	// Touched lists recipients whose notifications changed other than through
	// Notification, e.g. a retracted request notice.
	Touched  []int64
	Err      error
	Duration time.Duration
}

// Recipients returns every user whose inbox the transition changed.
func (t *Transition) Recipients() []int64 {
	out := append([]int64(nil), t.Touched...)
	if t.Notification != nil {
		out = append(out, t.Notification.RecipientID)
	}
	return out
}

// Service runs social operations against db.
type Service struct {
	db      *gorm.DB
	emitter notify.Emitter
	hooks   *hook.Center
	cfg     config.SocialConfig
	policy  *bluemonday.Policy
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a Service. hooks may be nil.
func NewService(db *gorm.DB, emitter notify.Emitter, hooks *hook.Center, cfg config.SocialConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:      db,
		emitter: emitter,
		hooks:   hooks,
		cfg:     cfg,
		policy:  bluemonday.StrictPolicy(),
		logger:  logger,
		now:     time.Now,
	}
}

func ptr(v int64) *int64 { return &v }

// run executes fn in a transaction and reports the outcome to the hooks.
func (s *Service) run(ctx context.Context, event string, t *Transition, fn func(tx *gorm.DB) (*Snapshot, error)) (*Snapshot, error) {
	start := time.Now()
	var snap *Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = fn(tx)
		return err
	})
	t.Duration = time.Since(start)
	if err != nil && errs.KindOf(err) == errs.KindUnknown && store.IsLockConflict(err) {
		err = errs.Conflict("concurrent update; try again")
	}
	if err != nil {
		t.Err = err
		t.Notification = nil
		t.Touched = nil
		if errs.KindOf(err) == errs.KindUnknown {
			s.logger.Error("social transition failed",
				zap.String("action", string(t.Action)), zap.Int64("actor_id", t.ActorID), zap.Error(err))
		}
	} else {
		if t.Notification != nil {
			snap.NotificationID = &t.Notification.ID
		}
		t.Snapshot = snap
	}
	if s.hooks != nil {
		_, _ = s.hooks.Trigger(ctx, event, t)
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// emit records ev in tx and remembers it on t.
func (s *Service) emit(ctx context.Context, tx *gorm.DB, t *Transition, ev notify.Event) error {
	n, err := s.emitter.Emit(ctx, tx, ev)
	if err != nil {
		return err
	}
	t.Notification = n
	return nil
}

// cleanText strips markup from user-supplied text and trims it.
func (s *Service) cleanText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(in)))
}

func (s *Service) cleanMessage(in string) (string, error) {
	msg := s.cleanText(in)
	if s.cfg.MessageMaxLen > 0 && utf8.RuneCountInString(msg) > s.cfg.MessageMaxLen {
		return "", errs.Validation("message must be at most %d characters", s.cfg.MessageMaxLen)
	}
	return msg, nil
}

func notFoundUser(id int64) error {
	return errs.NotFound("user %d not found", id)
}
