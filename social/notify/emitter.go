// Package notify records the notification side effect of each transition and
// serves the recipient's inbox.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/fitcircle/fitcircle/model"
	"gorm.io/gorm"
)

// Event is one notification to be recorded.
type Event struct {
	Type      model.NotificationType
	Recipient int64
	Actor     int64
	GroupID   *int64
}

// Emitter records an Event inside the caller's transaction. An error must
// abort the transition that produced the event.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, ev Event) (*model.Notification, error)
}

// DBEmitter inserts notification rows.
type DBEmitter struct {
	now func() time.Time
}

// NewDBEmitter returns an emitter stamping rows with the wall clock.
func NewDBEmitter() *DBEmitter {
	return &DBEmitter{now: time.Now}
}

func (e *DBEmitter) Emit(ctx context.Context, tx *gorm.DB, ev Event) (*model.Notification, error) {
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("notify: unknown notification type %q", ev.Type)
	}
	n := &model.Notification{
		RecipientID: ev.Recipient,
		ActorID:     ev.Actor,
		GroupID:     ev.GroupID,
		Type:        ev.Type,
		ReceivedAt:  e.now(),
	}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("notify: insert %s: %w", ev.Type, err)
	}
	return n, nil
}

// Retract deletes the newest unread notification of type typ sent by actor
// to recipient at or after since. It is used when the action that produced it
// is withdrawn; older notices and ones already read stay.
func Retract(ctx context.Context, tx *gorm.DB, typ model.NotificationType, recipient, actor int64, since time.Time) (int64, error) {
	var ids []int64
	err := tx.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND actor_id = ? AND type = ? AND is_read = ? AND received_at >= ?",
			recipient, actor, typ, false, since).
		Order("id DESC").Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("notify: retract %s: %w", typ, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Delete(&model.Notification{}, ids[0])
	if res.Error != nil {
		return 0, fmt.Errorf("notify: retract %s: %w", typ, res.Error)
	}
	return res.RowsAffected, nil
}
