package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Live 代表賣家的直播場次，也就是競標訊息廣播的房間
// 影音串流本身由外部服務負責，系統只關心房間的開始與結束
type Live struct {
	gorm.Model

	ID          uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	SellerID    uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Title       string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text;not null"`
	StartTime   time.Time `gorm:"type:timestamp with time zone;not null"`

	// 外鍵關聯
	Seller   *User     `gorm:"foreignKey:SellerID"`
	Auctions []Auction `gorm:"foreignKey:LiveID"`
}
