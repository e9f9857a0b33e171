package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuctionStatus 代表拍賣的生命週期狀態
// 狀態轉移只允許 SCHEDULED → IN_PROGRESS → ENDED，由生命週期控制器負責
type AuctionStatus string

const (
	AuctionScheduled  AuctionStatus = "SCHEDULED"
	AuctionInProgress AuctionStatus = "IN_PROGRESS"
	AuctionEnded      AuctionStatus = "ENDED"
)

// Auction 代表直播中的一場競標
// 在直播場次登錄時建立；一旦有人出價就不允許再修改或刪除
type Auction struct {
	gorm.Model

	ID         uuid.UUID     `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	LiveID     uuid.UUID     `gorm:"type:uuid;not null;<-:create"`
	ProductID  uuid.UUID     `gorm:"type:uuid;not null;<-:create"`
	StartPrice int64         `gorm:"type:bigint;not null"`
	Amount     int32         `gorm:"type:integer;not null"`
	Status     AuctionStatus `gorm:"type:varchar(16);not null;default:'SCHEDULED'"`

	// 外鍵關聯
	Live    *Live    `gorm:"foreignKey:LiveID"`
	Product *Product `gorm:"foreignKey:ProductID"`
}
