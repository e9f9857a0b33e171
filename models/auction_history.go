package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryAction 代表競標紀錄的種類
// 結算時每場拍賣只會有一筆 AWARDED，其餘都是 BID；訂單付款後轉為 PAID
type HistoryAction string

const (
	HistoryBid     HistoryAction = "BID"
	HistoryAwarded HistoryAction = "AWARDED"
	HistoryPaid    HistoryAction = "PAID"
)

// AuctionHistory 代表結算後的永久競標紀錄
// 由結算服務從 Redis 中的出價帳本搬移而來
type AuctionHistory struct {
	gorm.Model

	ID         uuid.UUID     `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	AuctionID  uuid.UUID     `gorm:"type:uuid;not null;index;<-:create"`
	BidderID   uuid.UUID     `gorm:"type:uuid;not null;<-:create"`
	Action     HistoryAction `gorm:"type:varchar(16);not null"`
	Price      int64         `gorm:"type:bigint;not null;<-:create"`
	ActionTime time.Time     `gorm:"type:timestamp with time zone;not null;<-:create"`

	// 外鍵關聯
	Auction *Auction `gorm:"foreignKey:AuctionID"`
	Bidder  *User    `gorm:"foreignKey:BidderID"`
}
