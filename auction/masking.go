package auction

import (
	"strings"

	"github.com/google/uuid"
)

// MaskDisplayName 將顯示名稱遮罩為「首字 + 星號 + 末字」
// 長度不超過兩個字的名稱不遮罩。這是隱私遮罩而不是安全邊界，
// 帳本與歷史紀錄中仍保有原始資料
func MaskDisplayName(name string) string {
	runes := []rune(name)
	if len(runes) <= 2 {
		return name
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

// MaskBid 將一筆出價轉成可廣播的形式
// 出價者的識別碼以 uuid.Nil 取代，顯示名稱經過遮罩
func MaskBid(record BidRecord) MaskedBid {
	return MaskedBid{
		BidderID:   uuid.Nil,
		BidderName: MaskDisplayName(record.BidderName),
		Price:      record.Price,
		Time:       record.SubmittedAt,
	}
}

// MaskBids 遮罩整份排行榜
func MaskBids(records []BidRecord) []MaskedBid {
	masked := make([]MaskedBid, len(records))
	for i, record := range records {
		masked[i] = MaskBid(record)
	}
	return masked
}
