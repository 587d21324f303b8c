package store

import (
	"fmt"
	"time"

	"github.com/fitcircle/fitcircle/model"
	"gorm.io/gorm"
)

// FindGroup loads a group by ID, or nil.
func FindGroup(tx *gorm.DB, id int64) (*model.Group, error) {
	var g model.Group
	ok, err := first(forUpdate(tx).Where("id = ?", id), &g, "group")
	if err != nil || !ok {
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts g and the admin membership m in the caller's transaction.
func CreateGroup(tx *gorm.DB, g *model.Group, m *model.GroupMembership) error {
	if err := write(tx.Omit("Memberships", "Requests").Create(g).Error, "group"); err != nil {
		return err
	}
	m.GroupID = g.ID
	return write(tx.Create(m).Error, "group membership")
}

func SaveGroup(tx *gorm.DB, g *model.Group) error {
	return write(tx.Omit("Memberships", "Requests").Save(g).Error, "group")
}

// DeleteGroup removes the group with its memberships and join requests. The
// foreign keys cascade as well; deleting children first keeps the result the
// same on connections where foreign keys are not enforced.
func DeleteGroup(tx *gorm.DB, g *model.Group) error {
	if err := tx.Where("group_id = ?", g.ID).Delete(&model.GroupAddRequest{}).Error; err != nil {
		return fmt.Errorf("store: delete join requests: %w", err)
	}
	if err := tx.Where("group_id = ?", g.ID).Delete(&model.GroupMembership{}).Error; err != nil {
		return fmt.Errorf("store: delete memberships: %w", err)
	}
	return write(tx.Delete(g).Error, "group")
}

// FindMembership returns the (user, group) row, or nil.
func FindMembership(tx *gorm.DB, userID, groupID int64) (*model.GroupMembership, error) {
	var m model.GroupMembership
	ok, err := first(forUpdate(tx).Where("user_id = ? AND group_id = ?", userID, groupID), &m, "group membership")
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

func SaveMembership(tx *gorm.DB, m *model.GroupMembership) error {
	return write(tx.Save(m).Error, "group membership")
}

func DeleteMembership(tx *gorm.DB, m *model.GroupMembership) error {
	return write(tx.Delete(m).Error, "group membership")
}

// FindPendingJoinRequest returns the pending request from userID to groupID, or nil.
func FindPendingJoinRequest(tx *gorm.DB, userID, groupID int64) (*model.GroupAddRequest, error) {
	var r model.GroupAddRequest
	ok, err := first(forUpdate(tx).Where("user_id = ? AND group_id = ? AND status = ?",
		userID, groupID, model.RequestPending), &r, "join request")
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

// GetJoinRequest loads a join request by ID, or nil.
func GetJoinRequest(tx *gorm.DB, id int64) (*model.GroupAddRequest, error) {
	var r model.GroupAddRequest
	ok, err := first(forUpdate(tx).Where("id = ?", id), &r, "join request")
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func CreateJoinRequest(tx *gorm.DB, r *model.GroupAddRequest) error {
	return write(tx.Create(r).Error, "join request")
}

func SaveJoinRequest(tx *gorm.DB, r *model.GroupAddRequest) error {
	return write(tx.Save(r).Error, "join request")
}

// ---- read views ----

// MemberView is one row of a group member listing.
type MemberView struct {
	UserID    int64                  `json:"user_id"`
	Username  string                 `json:"username"`
	Status    model.MembershipStatus `json:"status"`
	StartedAt time.Time              `json:"started_at"`
}

func listMembers(db *gorm.DB, groupID int64, status model.MembershipStatus, excludeUser int64) ([]MemberView, error) {
	var out []MemberView
	err := db.Table("group_memberships AS m").
		Select("m.user_id AS user_id, a.username AS username, m.status AS status, m.started_at AS started_at").
		Joins("JOIN accounts a ON a.id = m.user_id").
		Where("m.group_id = ? AND m.status = ? AND m.user_id <> ?", groupID, status, excludeUser).
		Order("m.started_at, m.id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list members: %w", err)
	}
	return out, nil
}

// ListMembers returns the accepted members of g, excluding its admin.
func ListMembers(db *gorm.DB, g *model.Group) ([]MemberView, error) {
	return listMembers(db, g.ID, model.MembershipAccepted, g.AdminID)
}

// ListBlockedMembers returns the users blocked from g.
func ListBlockedMembers(db *gorm.DB, g *model.Group) ([]MemberView, error) {
	return listMembers(db, g.ID, model.MembershipBlocked, g.AdminID)
}

// CountMembers counts accepted memberships of groupID, the admin included.
func CountMembers(db *gorm.DB, groupID int64) (int64, error) {
	var n int64
	err := db.Model(&model.GroupMembership{}).
		Where("group_id = ? AND status = ?", groupID, model.MembershipAccepted).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("store: count members: %w", err)
	}
	return n, nil
}

// ListPendingJoinRequests returns pending requests for groupID, oldest first.
func ListPendingJoinRequests(db *gorm.DB, groupID int64) ([]model.GroupAddRequest, error) {
	var out []model.GroupAddRequest
	err := db.Where("group_id = ? AND status = ?", groupID, model.RequestPending).
		Order("sent_at, id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list join requests: %w", err)
	}
	return out, nil
}

// ListGroupsOf returns the groups where userID holds an accepted membership.
func ListGroupsOf(db *gorm.DB, userID int64) ([]model.Group, error) {
	var out []model.Group
	err := db.Joins("JOIN group_memberships m ON m.group_id = social_groups.id").
		Where("m.user_id = ? AND m.status = ?", userID, model.MembershipAccepted).
		Order("social_groups.name").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	return out, nil
}
