package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchFansOutToAllHandlersOnChannel(t *testing.T) {
	l := NewListener("postgres://unused")

	var mu sync.Mutex
	var calls []string
	h1 := func(channel string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "h1:"+channel+":"+string(payload))
	}
	h2 := func(channel string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "h2:"+channel+":"+string(payload))
	}
	l.handlers["conversation:abc"] = []Handler{h1, h2}

	l.dispatch("conversation:abc", []byte(`{"type":"done"}`))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, calls, 2)
	assert.Contains(t, calls, `h1:conversation:abc:{"type":"done"}`)
	assert.Contains(t, calls, `h2:conversation:abc:{"type":"done"}`)
}

func TestDispatchIgnoresUnregisteredChannel(t *testing.T) {
	l := NewListener("postgres://unused")
	// Should not panic even with no handlers registered.
	l.dispatch("conversation:none", []byte(`{}`))
}

func TestDispatchRecoversFromHandlerPanic(t *testing.T) {
	l := NewListener("postgres://unused")
	called := false
	l.handlers["c"] = []Handler{
		func(channel string, payload []byte) { panic("boom") },
		func(channel string, payload []byte) { called = true },
	}
	assert.NotPanics(t, func() { l.dispatch("c", []byte("{}")) })
	assert.True(t, called)
}
