package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMaskDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "空字串", input: "", want: ""},
		{name: "單一字元不遮罩", input: "A", want: "A"},
		{name: "兩個字元不遮罩", input: "AB", want: "AB"},
		{name: "三個字元", input: "ABC", want: "A*C"},
		{name: "英文名稱", input: "Alice", want: "A***e"},
		{name: "韓文名稱", input: "김철수", want: "김*수"},
		{name: "中文名稱", input: "王小明", want: "王*明"},
		{name: "較長的多位元組名稱", input: "홍길동전집", want: "홍***집"},
		{name: "混合字元", input: "A漢b字C", want: "A***C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskDisplayName(tt.input))
		})
	}
}

func TestMaskBid(t *testing.T) {
	record := BidRecord{
		BidID:       uuid.New(),
		AuctionID:   uuid.New(),
		BidderID:    uuid.New(),
		BidderName:  "Alice",
		Price:       8000,
		SubmittedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	masked := MaskBid(record)
	assert.Equal(t, uuid.Nil, masked.BidderID)
	assert.Equal(t, "A***e", masked.BidderName)
	assert.Equal(t, int64(8000), masked.Price)
	assert.True(t, record.SubmittedAt.Equal(masked.Time))
}

func TestMaskBids(t *testing.T) {
	records := []BidRecord{
		{BidderID: uuid.New(), BidderName: "Alice", Price: 8000},
		{BidderID: uuid.New(), BidderName: "Bob", Price: 7000},
	}

	masked := MaskBids(records)
	assert.Len(t, masked, 2)
	for _, bid := range masked {
		assert.Equal(t, uuid.Nil, bid.BidderID)
	}
	assert.Equal(t, "B*b", masked[1].BidderName)

	assert.Empty(t, MaskBids(nil))
}
