package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 代表拍賣系統中的使用者
// 同一個使用者可以作為賣家開設直播拍賣，也可以作為買家參與競標
type User struct {
	gorm.Model

	ID       uuid.UUID `gorm:"type:uuid;default:public.uuid_generate_v7();primaryKey;<-:false"`
	Username string    `gorm:"type:varchar(255);not null;<-:create"`
	Nickname string    `gorm:"type:varchar(255);not null"`
}
