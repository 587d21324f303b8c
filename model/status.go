package model

import "fmt"

// FriendshipStatus is the state of a pairwise relationship row.
type FriendshipStatus string

const (
	FriendshipActive  FriendshipStatus = "active"
	FriendshipKicked  FriendshipStatus = "kicked"
	FriendshipBlocked FriendshipStatus = "blocked"
)

// Valid reports whether s is a known friendship status.
func (s FriendshipStatus) Valid() bool {
	switch s {
	case FriendshipActive, FriendshipKicked, FriendshipBlocked:
		return true
	}
	return false
}

// RequestStatus is shared by friend requests and group join requests.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestDeclined:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestDeclined
}

// MembershipStatus is the state of a (user, group) row.
type MembershipStatus string

const (
	MembershipAccepted MembershipStatus = "accepted"
	MembershipKicked   MembershipStatus = "kicked"
	MembershipBlocked  MembershipStatus = "blocked"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipAccepted, MembershipKicked, MembershipBlocked:
		return true
	}
	return false
}

// UnknownStatusError is returned when a stored status value is not one of
// the declared constants.
type UnknownStatusError struct {
	Kind  string
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("model: unknown %s status %q", e.Kind, e.Value)
}
