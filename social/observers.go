package social

import (
	"context"

	"github.com/fitcircle/fitcircle/audit"
	"github.com/fitcircle/fitcircle/hook"
	"github.com/fitcircle/fitcircle/social/notify"
)

// Observer priorities; lower runs first.
const (
	priorityAudit = 10
	priorityInbox = 20
)

// RegisterObservers subscribes the audit log and the inbox cache to every
// social transition. Either dependency may be nil.
func RegisterObservers(hc *hook.Center, auditSvc *audit.Service, inbox *notify.Inbox) {
	for _, event := range []string{hook.AfterFriendTransition, hook.AfterGroupTransition} {
		if auditSvc != nil {
			hc.Register(event, priorityAudit, "audit", auditObserver(auditSvc))
		}
		if inbox != nil {
			hc.Register(event, priorityInbox, "inbox", inboxObserver(inbox))
		}
	}
}

func auditObserver(svc *audit.Service) hook.Fn {
	return func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		t, ok := data.(*Transition)
		if !ok {
			return data, nil
		}
		entry := audit.Entry{
			TraceID:    audit.TraceIDFrom(ctx),
			ActorID:    t.ActorID,
			TargetID:   t.TargetID,
			GroupID:    t.GroupID,
			Action:     string(t.Action),
			Request:    t.Request,
			DurationMs: int(t.Duration.Milliseconds()),
		}
		if t.Err != nil {
			entry.Error = t.Err.Error()
		} else {
			entry.Response = t.Snapshot
		}
		svc.Log(entry)
		return data, nil
	}
}

// inboxObserver drops cached unread counts of everyone a committed
// transition notified.
func inboxObserver(inbox *notify.Inbox) hook.Fn {
	return func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		t, ok := data.(*Transition)
		if !ok || t.Err != nil {
			return data, nil
		}
		if r := t.Recipients(); len(r) > 0 {
			inbox.Invalidate(ctx, r...)
		}
		return data, nil
	}
}
