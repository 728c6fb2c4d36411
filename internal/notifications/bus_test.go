package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
		id, err := ParseUserChannel(tt.expected)
		require.NoError(t, err)
		assert.Equal(t, tt.userID, id)
	}

	_, err := ParseUserChannel("chat:conv:5")
	assert.Error(t, err)
	_, err = ParseUserChannel("notifications:user:abc")
	assert.Error(t, err)
}

func TestBus_NilRedisIsNoop(t *testing.T) {
	b := NewBus(nil)
	assert.False(t, b.Enabled())
	assert.NoError(t, b.Publish(context.Background(), 1, []byte("x")))
	assert.NoError(t, b.Subscribe(context.Background(), func(uint, []byte) {
		t.Fatal("handler must not run")
	}))
}

func TestBus_PublishSubscribe(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := NewBus(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct {
		userID uint
		frame  string
	}
	got := make(chan delivery, 4)
	require.NoError(t, b.Subscribe(ctx, func(userID uint, frame []byte) {
		got <- delivery{userID, string(frame)}
	}))

	require.NoError(t, b.Publish(context.Background(), 12, []byte(`{"event":"x"}`)))
	select {
	case d := <-got:
		assert.Equal(t, uint(12), d.userID)
		assert.JSONEq(t, `{"event":"x"}`, d.frame)
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Publish(context.Background(), 12, []byte("after-cancel")))
	assert.Never(t, func() bool { return len(got) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}
