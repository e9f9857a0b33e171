package sse

// IChannel 定義了 SSE 頻道的介面
type IChannel[T any] interface {
	// Subscribe 建立一個新的訂閱並返回接收訊息的通道
	Subscribe() <-chan T
	// Unsubscribe 取消指定通道的訂閱
	Unsubscribe(ch <-chan T)
	// UnsubscribeAll 取消所有訂閱
	UnsubscribeAll()
	// Broadcast 將訊息廣播給所有訂閱者
	Broadcast(message T)
	// IsIdle 檢查是否沒有訂閱者
	IsIdle() bool
}

// IBroker 定義了 SSE 訊息分發器的介面
// 只負責單一節點內的頻道管理與廣播，跨節點的訊息轉發由上層透過 stream 消費者串接
type IBroker[T any] interface {
	// Subscribe 註冊並訂閱指定頻道，返回接收訊息的通道
	Subscribe(channelName string) (<-chan T, error)
	// Unsubscribe 取消訂閱指定頻道
	Unsubscribe(channelName string, ch <-chan T)
	// Broadcast 將訊息廣播給指定頻道的所有本地訂閱者
	Broadcast(channelName string, message T)
	// Shutdown 關閉分發器，釋放所有訂閱
	Shutdown()
}
