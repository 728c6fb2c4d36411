package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	t.Parallel()
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_Rollout(t *testing.T) {
	t.Parallel()
	m := NewManager("always=100%,never=0%,canary=25%,broken=x%")

	assert.True(t, m.Enabled("always", 1))
	assert.True(t, m.Enabled("always", 0))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("broken", 1))
	assert.False(t, m.Enabled("canary", 0), "anonymous callers are never in a partial rollout")

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42))
	}

	in := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("canary", id) {
			in++
		}
	}
	assert.InDelta(t, 250, in, 80)
}

func TestSnapshotIncludesKnownFlags(t *testing.T) {
	t.Parallel()
	m := NewManager(" bad , PRESENCE_EVENTS = On ,extra=20%")

	assert.Equal(t, map[string]string{"presence_events": "on", "extra": "20%"}, m.Raw())

	snap := m.Snapshot(7)
	assert.True(t, snap[PresenceEvents])
	assert.Contains(t, snap, SuggestedUsers)
	assert.False(t, snap[SuggestedUsers])
	assert.Contains(t, snap, "extra")
	assert.Equal(t, []string{"extra", PresenceEvents, SuggestedUsers}, m.Names())
}

func TestNilManager(t *testing.T) {
	t.Parallel()
	var m *Manager
	assert.False(t, m.Enabled(PresenceEvents, 1))
	assert.Empty(t, m.Raw())
	assert.Len(t, m.Snapshot(1), 2)
}
