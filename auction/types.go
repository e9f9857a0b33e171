package auction

import (
	"time"

	"github.com/google/uuid"

	"freshbid/models"
)

// BidRecord 代表帳本中的一筆出價
// 只存在於 Redis 的排序帳本中，BidID 是為了讓內容相同的出價不互相覆蓋
type BidRecord struct {
	BidID       uuid.UUID `msgpack:"bidId" json:"bidId"`
	AuctionID   uuid.UUID `msgpack:"auctionId" json:"auctionId"`
	BidderID    uuid.UUID `msgpack:"bidderId" json:"bidderId"`
	BidderName  string    `msgpack:"bidderName" json:"bidderName"`
	Price       int64     `msgpack:"price" json:"price"`
	SubmittedAt time.Time `msgpack:"submittedAt" json:"submittedAt"`
}

// Status 是 BidStatus 的回傳結果，出價依照價格由高至低排序
// 帳本為空時 CurrentHighest 會是拍賣的起標價
type Status struct {
	AuctionID      uuid.UUID
	AuctionStatus  models.AuctionStatus
	CurrentHighest int64
	Bids           []BidRecord
}

// Award 代表結算後的得標結果
type Award struct {
	AuctionID uuid.UUID
	HistoryID uuid.UUID
	BidderID  uuid.UUID
	Price     int64
	AwardedAt time.Time
}

// 房間廣播訊息的種類，對應前端協定的 type 欄位
const (
	EventSubmitBidResult  = "submitBidResult"
	EventStartAuction     = "startAuctionResult"
	EventStopAuction      = "stopAuctionResult"
	EventBidStatusUpdate  = "bidStatusUpdate"
	EventWinningBidResult = "winningBidResult"
	EventAuctionFailed    = "auctionFailedResult"
)

// MaskedBid 是廣播用的出價資訊，識別欄位都經過遮罩
type MaskedBid struct {
	BidderID   uuid.UUID `msgpack:"userId" json:"userId"`
	BidderName string    `msgpack:"bidderName" json:"bidderName"`
	Price      int64     `msgpack:"bidPrice" json:"bidPrice"`
	Time       time.Time `msgpack:"time" json:"time"`
}

// RoomEvent 是房間廣播的訊息信封，只有對應 Type 的欄位會被填入
// 直接回覆給操作者本人的 ack 不經過遮罩，廣播出去的內容一律先遮罩
type RoomEvent struct {
	Type    string `msgpack:"type" json:"type"`
	Success *bool  `msgpack:"success,omitempty" json:"success,omitempty"`
	Message string `msgpack:"message,omitempty" json:"message,omitempty"`

	AuctionID           uuid.UUID   `msgpack:"auctionId,omitempty" json:"auctionId,omitempty"`
	AuctionStatus       string      `msgpack:"status,omitempty" json:"status,omitempty"`
	CurrentHighestPrice int64       `msgpack:"currentHighestPrice,omitempty" json:"currentHighestPrice,omitempty"`
	BidList             []MaskedBid `msgpack:"bidList,omitempty" json:"bidList,omitempty"`
	HighestBid          *MaskedBid  `msgpack:"highestBid,omitempty" json:"highestBid,omitempty"`

	BidPrice int64     `msgpack:"bidPrice,omitempty" json:"bidPrice,omitempty"`
	UserID   uuid.UUID `msgpack:"userId,omitempty" json:"userId,omitempty"`
}
