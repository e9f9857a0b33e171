package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoRenewMutexLockUnlock(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	mutex := NewAutoRenewMutex(client, "lock:test")
	lockCtx, err := mutex.Lock(ctx)
	require.NoError(t, err)
	assert.NoError(t, lockCtx.Err())
	assert.True(t, mutex.Valid())

	ok, err := mutex.Unlock()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mutex.Valid())

	// 釋放後其他持有者可以取得鎖
	other := NewAutoRenewMutex(client, "lock:test", WithAutoRenewMutexTries(1))
	_, err = other.Lock(ctx)
	require.NoError(t, err)
	_, err = other.Unlock()
	require.NoError(t, err)
}

func TestAutoRenewMutexContention(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	holder := NewAutoRenewMutex(client, "lock:contended")
	_, err := holder.Lock(ctx)
	require.NoError(t, err)
	defer holder.Unlock()

	// 鎖被持有時，只嘗試一次的競爭者會失敗
	contender := NewAutoRenewMutex(client, "lock:contended",
		WithAutoRenewMutexTries(1),
		WithAutoRenewMutexRetryDelay(10*time.Millisecond),
	)
	_, err = contender.Lock(ctx)
	assert.Error(t, err)
}

func TestAutoRenewMutexRenewal(t *testing.T) {
	_, client := setupMiniredis(t)
	ctx := context.Background()

	// expiry遠小於持有時間，沒有自動續期的話鎖早就失效了
	mutex := NewAutoRenewMutex(client, "lock:renewed",
		WithAutoRenewMutexExpiry(200*time.Millisecond),
		WithAutoRenewMutexRenewInterval(50*time.Millisecond),
	)
	lockCtx, err := mutex.Lock(ctx)
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	assert.True(t, mutex.Valid())
	assert.NoError(t, lockCtx.Err())

	_, err = mutex.Unlock()
	require.NoError(t, err)
}
