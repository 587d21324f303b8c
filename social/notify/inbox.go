package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fitcircle/fitcircle/cache"
	"github.com/fitcircle/fitcircle/config"
	"github.com/fitcircle/fitcircle/model"
	"github.com/fitcircle/fitcircle/social/errs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Item is a notification as shown to its recipient.
type Item struct {
	ID         int64                  `json:"id"`
	Type       model.NotificationType `json:"type"`
	Message    string                 `json:"message"`
	Link       string                 `json:"link,omitempty"`
	ActorID    int64                  `json:"actor_id"`
	ActorName  string                 `json:"actor_name"`
	GroupID    *int64                 `json:"group_id,omitempty"`
	GroupName  string                 `json:"group_name,omitempty"`
	IsRead     bool                   `json:"is_read"`
	ReceivedAt time.Time              `json:"received_at"`
}

// Page is one page of a recipient's notifications, newest first.
type Page struct {
	Items    []Item `json:"items"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Total    int64  `json:"total"`
}

// Inbox serves notification reads. Unread counts are cached per recipient
// and dropped whenever that recipient's notifications change.
type Inbox struct {
	db       *gorm.DB
	cache    cache.Cache
	ttl      time.Duration
	pageSize int
	logger   *zap.Logger
}

func NewInbox(db *gorm.DB, c cache.Cache, cfg config.SocialConfig, logger *zap.Logger) *Inbox {
	size := cfg.PageSize
	if size <= 0 {
		size = 10
	}
	return &Inbox{db: db, cache: c, ttl: cfg.UnreadCacheTTL, pageSize: size, logger: logger}
}

func unreadKey(recipient int64) string {
	return "notify:unread:" + strconv.FormatInt(recipient, 10)
}

// unreadVersionKey is bumped by Invalidate. Cached counts carry the version
// they were computed under and are ignored once it moves on, so a count read
// before a commit and stored after its invalidation is never served.
// Version keys carry no TTL.
func unreadVersionKey(recipient int64) string {
	return "notify:unread_ver:" + strconv.FormatInt(recipient, 10)
}

func (in *Inbox) unreadVersion(ctx context.Context, recipient int64) (string, error) {
	v, err := in.cache.Get(ctx, unreadVersionKey(recipient))
	if cache.IsNotFound(err) {
		return "0", nil
	}
	return v, err
}

// List returns page (1-based) of recipient's notifications.
func (in *Inbox) List(ctx context.Context, recipient int64, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	db := in.db.WithContext(ctx)

	var total int64
	if err := db.Model(&model.Notification{}).Where("recipient_id = ?", recipient).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("notify: count: %w", err)
	}

	var rows []model.Notification
	err := db.Where("recipient_id = ?", recipient).
		Order("received_at DESC, id DESC").
		Offset((page - 1) * in.pageSize).Limit(in.pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}

	actors, groups, err := in.names(db, rows)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rows))
	for _, n := range rows {
		it := Item{
			ID:         n.ID,
			Type:       n.Type,
			ActorID:    n.ActorID,
			ActorName:  actors[n.ActorID],
			GroupID:    n.GroupID,
			IsRead:     n.IsRead,
			ReceivedAt: n.ReceivedAt,
			Link:       Link(n.Type, n.GroupID),
		}
		if n.GroupID != nil {
			it.GroupName = groups[*n.GroupID]
		}
		it.Message = Message(n.Type, it.ActorName, it.GroupName)
		items = append(items, it)
	}
	return &Page{Items: items, Page: page, PageSize: in.pageSize, Total: total}, nil
}

func (in *Inbox) names(db *gorm.DB, rows []model.Notification) (map[int64]string, map[int64]string, error) {
	actorIDs := make([]int64, 0, len(rows))
	groupIDs := make([]int64, 0)
	for _, n := range rows {
		actorIDs = append(actorIDs, n.ActorID)
		if n.GroupID != nil {
			groupIDs = append(groupIDs, *n.GroupID)
		}
	}
	actors := make(map[int64]string, len(actorIDs))
	groups := make(map[int64]string, len(groupIDs))
	if len(actorIDs) > 0 {
		var accs []model.Account
		if err := db.Select("id", "username").Where("id IN ?", actorIDs).Find(&accs).Error; err != nil {
			return nil, nil, fmt.Errorf("notify: load actors: %w", err)
		}
		for _, a := range accs {
			actors[a.ID] = a.Username
		}
	}
	if len(groupIDs) > 0 {
		var gs []model.Group
		if err := db.Select("id", "name").Where("id IN ?", groupIDs).Find(&gs).Error; err != nil {
			return nil, nil, fmt.Errorf("notify: load groups: %w", err)
		}
		for _, g := range gs {
			groups[g.ID] = g.Name
		}
	}
	return actors, groups, nil
}

// MarkRead marks one of recipient's notifications read.
func (in *Inbox) MarkRead(ctx context.Context, recipient, id int64) error {
	var n model.Notification
	err := in.db.WithContext(ctx).Where("id = ?", id).Take(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("notification not found")
	}
	if err != nil {
		return fmt.Errorf("notify: load: %w", err)
	}
	if n.RecipientID != recipient {
		return errs.Forbidden("notification belongs to another user")
	}
	if n.IsRead {
		return nil
	}
	if err := in.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	in.Invalidate(ctx, recipient)
	return nil
}

// MarkAllRead marks every unread notification of recipient read and returns
// how many changed.
func (in *Inbox) MarkAllRead(ctx context.Context, recipient int64) (int64, error) {
	res := in.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipient, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("notify: mark all read: %w", res.Error)
	}
	in.Invalidate(ctx, recipient)
	return res.RowsAffected, nil
}

// UnreadCount returns the number of unread notifications for recipient.
func (in *Inbox) UnreadCount(ctx context.Context, recipient int64) (int64, error) {
	key := unreadKey(recipient)
	ver, err := in.unreadVersion(ctx, recipient)
	if err != nil {
		in.logger.Warn("unread count version read failed", zap.Int64("recipient", recipient), zap.Error(err))
		return in.countUnread(ctx, recipient)
	}
	if v, err := in.cache.Get(ctx, key); err == nil {
		if cachedVer, count, ok := strings.Cut(v, ":"); ok && cachedVer == ver {
			if n, perr := strconv.ParseInt(count, 10, 64); perr == nil {
				return n, nil
			}
		}
	} else if !cache.IsNotFound(err) {
		in.logger.Warn("unread count cache read failed", zap.Int64("recipient", recipient), zap.Error(err))
	}

	n, err := in.countUnread(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if err := in.cache.Set(ctx, key, ver+":"+strconv.FormatInt(n, 10), in.ttl); err != nil {
		in.logger.Warn("unread count cache write failed", zap.Int64("recipient", recipient), zap.Error(err))
	}
	return n, nil
}

func (in *Inbox) countUnread(ctx context.Context, recipient int64) (int64, error) {
	var n int64
	err := in.db.WithContext(ctx).Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipient, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("notify: unread count: %w", err)
	}
	return n, nil
}

// Invalidate drops cached unread counts. Cache errors are logged, not returned:
// a stale entry expires on its own.
func (in *Inbox) Invalidate(ctx context.Context, recipients ...int64) {
	if len(recipients) == 0 {
		return
	}
	keys := make([]string, len(recipients))
	for i, r := range recipients {
		keys[i] = unreadKey(r)
		if _, err := in.cache.IncrBy(ctx, unreadVersionKey(r), 1); err != nil {
			in.logger.Warn("unread count version bump failed", zap.Int64("recipient", r), zap.Error(err))
		}
	}
	if err := in.cache.Del(ctx, keys...); err != nil {
		in.logger.Warn("unread count cache invalidate failed", zap.Error(err))
	}
}

// PurgeRead deletes read notifications received before cutoff.
func (in *Inbox) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	res := in.db.WithContext(ctx).
		Where("is_read = ? AND received_at < ?", true, cutoff).
		Delete(&model.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("notify: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}

const purgeLockKey = "notify:purge_lock"

// PurgeReadLocked runs PurgeRead unless another caller sharing the cache took
// the purge lock within the last hold. Servers on the same Redis therefore
// purge once per cron tick. ran is false when the run was skipped.
func (in *Inbox) PurgeReadLocked(ctx context.Context, cutoff time.Time, hold time.Duration) (n int64, ran bool, err error) {
	ok, err := in.cache.SetNX(ctx, purgeLockKey, strconv.FormatInt(time.Now().Unix(), 10), hold)
	if err != nil {
		return 0, false, fmt.Errorf("notify: purge lock: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	n, err = in.PurgeRead(ctx, cutoff)
	return n, true, err
}
