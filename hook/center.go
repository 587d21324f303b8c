// Package hook dispatches post-commit events to registered observers.
package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Events fired by the social service after a transition has been decided.
const (
	// AfterFriendTransition carries a *social.Transition for friendship and
	// friend-request operations.
	AfterFriendTransition = "after_friend_transition"
	// AfterGroupTransition carries a *social.Transition for group operations.
	AfterGroupTransition = "after_group_transition"
)

// ErrInterrupt stops the remaining handlers of a Trigger.
var ErrInterrupt = errors.New("hook interrupted")

// Fn handles an event. It returns the data passed on to the next handler.
type Fn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type entry struct {
	priority int
	fn       Fn
	name     string
}

// Center holds handler registrations per event.
type Center struct {
	mu     sync.RWMutex
	hooks  map[string][]*entry
	logger *zap.Logger
}

func NewCenter(logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{hooks: make(map[string][]*entry), logger: logger}
}

// Register adds fn for event. Lower priority runs first; name identifies the
// handler for Unregister.
func (hc *Center) Register(event string, priority int, name string, fn Fn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := append(hc.hooks[event], &entry{priority: priority, fn: fn, name: name})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Unregister removes every handler called name from event.
func (hc *Center) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := hc.hooks[event]
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	hc.hooks[event] = entries[:n]
}

// Trigger runs the handlers for event in priority order. A handler error other
// than ErrInterrupt, or a panic, is logged and the chain continues with the
// data it was given.
func (hc *Center) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*entry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	for _, e := range entries {
		out, err := hc.call(ctx, e, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			hc.logger.Warn("hook handler failed",
				zap.String("event", event), zap.String("handler", e.name), zap.Error(err))
			continue
		}
		data = out
	}
	return data, nil
}

func (hc *Center) call(ctx context.Context, e *entry, event string, data interface{}) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.fn(ctx, event, data)
}
