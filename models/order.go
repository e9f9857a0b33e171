package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus 代表訂單的付款狀態
// 後續的出貨與金流流程由外部服務負責，這裡只關心建立當下的初始狀態
type OrderStatus string

const (
	OrderAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderPaid            OrderStatus = "PAID"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderRefunded        OrderStatus = "REFUNDED"
)

// Order 代表由得標紀錄產生的訂單
// 每筆 AWARDED 紀錄最多只會對應一筆訂單，由結算服務在建立前檢查
type Order struct {
	gorm.Model

	ID        uuid.UUID   `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	AuctionID uuid.UUID   `gorm:"type:uuid;not null;index;<-:create"`
	HistoryID uuid.UUID   `gorm:"type:uuid;not null;<-:create"`
	BuyerID   uuid.UUID   `gorm:"type:uuid;not null;<-:create"`
	SellerID  uuid.UUID   `gorm:"type:uuid;not null;<-:create"`
	Price     int64       `gorm:"type:bigint;not null;<-:create"`
	Status    OrderStatus `gorm:"type:varchar(32);not null;default:'AWAITING_PAYMENT'"`

	// 外鍵關聯
	Auction *Auction        `gorm:"foreignKey:AuctionID"`
	History *AuctionHistory `gorm:"foreignKey:HistoryID"`
	Buyer   *User           `gorm:"foreignKey:BuyerID"`
	Seller  *User           `gorm:"foreignKey:SellerID"`
}
