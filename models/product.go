package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product 代表賣家上架的商品
// 競標拍賣的標的物，得標後會以拍賣成交價建立訂單
type Product struct {
	gorm.Model

	ID       uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	Name     string    `gorm:"type:varchar(255);not null"`
	Grade    string    `gorm:"type:varchar(32);not null"`
	Weight   int64     `gorm:"type:integer;not null"`

	// 外鍵關聯
	Seller *User `gorm:"foreignKey:SellerID"`
}
