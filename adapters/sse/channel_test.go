package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSubscribeBroadcast(t *testing.T) {
	channel := NewChannel[string](4)
	assert.True(t, channel.IsIdle())

	subA := channel.Subscribe()
	subB := channel.Subscribe()
	assert.False(t, channel.IsIdle())

	channel.Broadcast("hello")
	assert.Equal(t, "hello", <-subA)
	assert.Equal(t, "hello", <-subB)
}

func TestChannelUnsubscribe(t *testing.T) {
	channel := NewChannel[string](4)
	sub := channel.Subscribe()

	channel.Unsubscribe(sub)
	assert.True(t, channel.IsIdle())

	// 取消訂閱後通道被關閉
	_, ok := <-sub
	assert.False(t, ok)

	// 重複取消訂閱是no-op
	channel.Unsubscribe(sub)
}

func TestChannelBroadcastSkipsSlowSubscriber(t *testing.T) {
	channel := NewChannel[int](1)
	slow := channel.Subscribe()
	fast := channel.Subscribe()

	// slow的緩衝只有1，第二則訊息會被丟棄而不是阻塞
	channel.Broadcast(1)
	channel.Broadcast(2)

	assert.Equal(t, 1, <-slow)
	select {
	case extra := <-slow:
		t.Fatalf("expected dropped message, got %d", extra)
	default:
	}

	// 有在讀的訂閱者不受影響
	assert.Equal(t, 1, <-fast)
}

func TestChannelUnsubscribeAll(t *testing.T) {
	channel := NewChannel[string](4)
	subA := channel.Subscribe()
	subB := channel.Subscribe()

	channel.UnsubscribeAll()
	require.True(t, channel.IsIdle())

	_, okA := <-subA
	_, okB := <-subB
	assert.False(t, okA)
	assert.False(t, okB)
}
