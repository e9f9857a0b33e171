package sse

import (
	"context"
	"log/slog"
	"sync"
)

// Broker 管理單一節點上的多個 SSE 頻道。
// 跨節點的訊息同步不在這一層處理：每個節點各自消費 Redis Stream，
// 再透過 Broadcast 把訊息分發給本地的訂閱者。
type Broker[T any] struct {
	logger *slog.Logger

	mu     sync.RWMutex
	active bool

	channels   map[string]IChannel[T]
	bufferSize int
}

type BrokerOption[T any] func(*Broker[T])

// WithBrokerLogger 設置日誌記錄器
func WithBrokerLogger[T any](logger *slog.Logger) BrokerOption[T] {
	return func(b *Broker[T]) {
		b.logger = logger
	}
}

// WithBrokerBufferSize 設置每個訂閱者通道的緩衝大小
func WithBrokerBufferSize[T any](size int) BrokerOption[T] {
	return func(b *Broker[T]) {
		b.bufferSize = size
	}
}

// NewBroker 建立一個新的 Broker 實例。
func NewBroker[T any](opts ...BrokerOption[T]) IBroker[T] {
	b := &Broker[T]{
		logger:     slog.Default(),
		channels:   make(map[string]IChannel[T]),
		bufferSize: 16,
		active:     true,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(slog.String("caller", "Broker"))
	return b
}

// Subscribe 訂閱指定的頻道。
// channelName: 要訂閱的頻道名稱
// 返回: 用於接收訊息的唯讀通道，以及可能的錯誤
func (b *Broker[T]) Subscribe(channelName string) (<-chan T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return nil, context.Canceled
	}

	c, ok := b.channels[channelName]
	if !ok {
		c = NewChannel[T](b.bufferSize)
		b.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Unsubscribe 取消訂閱指定的頻道，最後一個訂閱者離開時回收頻道。
func (b *Broker[T]) Unsubscribe(channelName string, ch <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.channels[channelName]
	if !ok {
		return
	}

	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(b.channels, channelName)
	}
}

// Broadcast 將訊息廣播給指定頻道的所有本地訂閱者。
// 頻道不存在（本節點沒有訂閱者）時靜默返回。
func (b *Broker[T]) Broadcast(channelName string, message T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.active {
		return
	}
	if c, ok := b.channels[channelName]; ok {
		c.Broadcast(message)
	}
}

// Shutdown 關閉分發器，中斷所有訂閱者。
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return
	}

	b.active = false
	for _, c := range b.channels {
		c.UnsubscribeAll()
	}
	clear(b.channels)
	b.logger.Info("sse broker shut down")
}
