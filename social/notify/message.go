package notify

import (
	"fmt"

	"github.com/fitcircle/fitcircle/model"
)

// Message renders the human-readable text of a notification.
func Message(typ model.NotificationType, actor, group string) string {
	if group == "" {
		group = "a deleted"
	}
	switch typ {
	case model.NotifyFriendRequestReceived:
		return fmt.Sprintf("%s has sent you a friendship request", actor)
	case model.NotifyFriendRequestAccepted:
		return fmt.Sprintf("%s has accepted your friendship request", actor)
	case model.NotifyFriendRequestDeclined:
		return fmt.Sprintf("%s has declined your friendship request", actor)
	case model.NotifyUserKick:
		return fmt.Sprintf("%s has kicked you from friends", actor)
	case model.NotifyUserBlock:
		return fmt.Sprintf("%s has blocked you", actor)
	case model.NotifyUserUnblock:
		return fmt.Sprintf("%s has unblocked you", actor)
	case model.NotifyGroupRequestReceived:
		return fmt.Sprintf("%s wants to join your %s group", actor, group)
	case model.NotifyGroupRequestAccepted:
		return fmt.Sprintf("%s has accepted your request to join %s group", actor, group)
	case model.NotifyGroupRequestDeclined:
		return fmt.Sprintf("%s has declined your request to join %s group", actor, group)
	case model.NotifyGroupKick:
		return fmt.Sprintf("%s has kicked you from %s group", actor, group)
	case model.NotifyGroupBlock:
		return fmt.Sprintf("%s has blocked you from %s group", actor, group)
	case model.NotifyGroupUnblock:
		return fmt.Sprintf("%s has unblocked you from %s group", actor, group)
	}
	return ""
}

// Link is the API path a client should open for the notification, or "".
func Link(typ model.NotificationType, groupID *int64) string {
	switch typ {
	case model.NotifyFriendRequestReceived:
		return "/api/friends/requests/received"
	case model.NotifyGroupRequestReceived:
		if groupID != nil {
			return fmt.Sprintf("/api/groups/%d/requests", *groupID)
		}
	case model.NotifyGroupRequestAccepted:
		if groupID != nil {
			return fmt.Sprintf("/api/groups/%d", *groupID)
		}
	}
	return ""
}
