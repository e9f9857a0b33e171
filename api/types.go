package api

import (
	"github.com/google/uuid"

	"freshbid/auction"
)

// RoomPublish 是事件 stream 上的訊息，指定事件要送到哪個本地頻道
// 各節點的 consumer 收到後轉發給自己節點上的訂閱者
type RoomPublish struct {
	Channel string            `msgpack:"channel" json:"channel"`
	Event   auction.RoomEvent `msgpack:"event" json:"event"`
}

// OrderVoid 是訂單作廢 stream 上的訊息
// 由外部訂單流程在訂單取消或付款逾時時發布
type OrderVoid struct {
	OrderID   uuid.UUID `msgpack:"orderId" json:"orderId"`
	AuctionID uuid.UUID `msgpack:"auctionId" json:"auctionId"`
	Reason    string    `msgpack:"reason" json:"reason"`
}

// roomChannel 是直播房間的頻道名稱，房間內所有人都會收到
func roomChannel(liveID uuid.UUID) string {
	return "live:" + liveID.String()
}

// userChannel 是單一使用者的頻道名稱，用於得標通知等單播訊息
func userChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}
