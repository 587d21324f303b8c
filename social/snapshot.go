package social

import (
	"time"

	"github.com/fitcircle/fitcircle/model"
)

// Entity names the kind of row a Snapshot describes.
type Entity string

const (
	EntityFriendship    Entity = "friendship"
	EntityFriendRequest Entity = "friend_request"
	EntityGroup         Entity = "group"
	EntityMembership    Entity = "membership"
	EntityJoinRequest   Entity = "join_request"
)

// Snapshot is the state a successful operation left behind. Deleted is set
// when the operation removed the row; Status is then empty.
type Snapshot struct {
	Entity         Entity     `json:"entity"`
	ID             int64      `json:"id"`
	Status         string     `json:"status,omitempty"`
	Deleted        bool       `json:"deleted,omitempty"`
	UserID         int64      `json:"user_id,omitempty"`
	OtherID        int64      `json:"other_id,omitempty"`
	GroupID        *int64     `json:"group_id,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`
	KickedAt       *time.Time `json:"kicked_at,omitempty"`
	BlockedAt      *time.Time `json:"blocked_at,omitempty"`
	NotificationID *int64     `json:"notification_id,omitempty"`
}

func friendshipSnapshot(f *model.Friendship) *Snapshot {
	created := f.CreatedAt
	return &Snapshot{
		Entity:    EntityFriendship,
		ID:        f.ID,
		Status:    string(f.Status),
		UserID:    f.InitiatorID,
		OtherID:   f.CounterpartID,
		CreatedAt: &created,
		KickedAt:  f.KickedAt,
		BlockedAt: f.BlockedAt,
	}
}

func friendRequestSnapshot(r *model.FriendRequest) *Snapshot {
	sent := r.SentAt
	return &Snapshot{
		Entity:      EntityFriendRequest,
		ID:          r.ID,
		Status:      string(r.Status),
		UserID:      r.SenderID,
		OtherID:     r.ReceiverID,
		CreatedAt:   &sent,
		RespondedAt: r.RespondedAt,
	}
}

func groupSnapshot(g *model.Group) *Snapshot {
	created := g.CreatedAt
	id := g.ID
	return &Snapshot{
		Entity:    EntityGroup,
		ID:        g.ID,
		UserID:    g.AdminID,
		GroupID:   &id,
		CreatedAt: &created,
	}
}

func membershipSnapshot(m *model.GroupMembership) *Snapshot {
	started := m.StartedAt
	group := m.GroupID
	return &Snapshot{
		Entity:    EntityMembership,
		ID:        m.ID,
		Status:    string(m.Status),
		UserID:    m.UserID,
		GroupID:   &group,
		CreatedAt: &started,
		KickedAt:  m.KickedAt,
		BlockedAt: m.BlockedAt,
	}
}

func joinRequestSnapshot(r *model.GroupAddRequest) *Snapshot {
	sent := r.SentAt
	group := r.GroupID
	return &Snapshot{
		Entity:      EntityJoinRequest,
		ID:          r.ID,
		Status:      string(r.Status),
		UserID:      r.UserID,
		GroupID:     &group,
		CreatedAt:   &sent,
		RespondedAt: r.RespondedAt,
	}
}

func deleted(s *Snapshot) *Snapshot {
	s.Deleted = true
	s.Status = ""
	return s
}
