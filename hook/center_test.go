package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTrigger_NoHandlers(t *testing.T) {
	hc := NewCenter(nil)
	out, err := hc.Trigger(context.Background(), AfterFriendTransition, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestTrigger_DataPassThrough(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	hc.Register("ev", 0, "double", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		return data.(int) * 2, nil
	})
	hc.Register("ev", 1, "addTen", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		return data.(int) + 10, nil
	})
	out, err := hc.Trigger(context.Background(), "ev", 5)
	require.NoError(t, err)
	assert.Equal(t, 20, out)
}

func TestTrigger_PriorityOrder(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	var order []string
	add := func(prio int, name string) {
		hc.Register(AfterGroupTransition, prio, name, func(_ context.Context, _ string, d interface{}) (interface{}, error) {
			order = append(order, name)
			return d, nil
		})
	}
	add(10, "audit")
	add(1, "cache")
	add(5, "metrics")
	add(5, "second-metrics")

	_, err := hc.Trigger(context.Background(), AfterGroupTransition, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "metrics", "second-metrics", "audit"}, order)
}

func TestTrigger_ErrInterrupt(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	var secondCalled bool
	hc.Register("ev", 0, "stopper", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d, ErrInterrupt
	})
	hc.Register("ev", 1, "should_not_run", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		secondCalled = true
		return d, nil
	})
	_, err := hc.Trigger(context.Background(), "ev", nil)
	assert.ErrorIs(t, err, ErrInterrupt)
	assert.False(t, secondCalled)
}

func TestTrigger_ErrorAndPanicContinue(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	var lastSaw interface{}
	hc.Register("ev", 0, "err", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return "discarded", errors.New("some error")
	})
	hc.Register("ev", 1, "panics", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		panic("boom")
	})
	hc.Register("ev", 2, "last", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		lastSaw = d
		return d, nil
	})
	out, err := hc.Trigger(context.Background(), "ev", "original")
	require.NoError(t, err)
	assert.Equal(t, "original", lastSaw)
	assert.Equal(t, "original", out)
}

func TestUnregister_OnlyNamed(t *testing.T) {
	hc := NewCenter(zap.NewNop())
	var c1, c2 bool
	hc.Register("ev", 0, "h1", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c1 = true; return d, nil })
	hc.Register("ev", 1, "h2", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c2 = true; return d, nil })
	hc.Unregister("ev", "h1")
	_, _ = hc.Trigger(context.Background(), "ev", nil)
	assert.False(t, c1)
	assert.True(t, c2)
}
