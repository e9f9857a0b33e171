package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freshbid/auction"
)

func TestAppendBidScript(t *testing.T) {
	mr, client := setupMiniredis(t)
	ctx := context.Background()

	auctionID := uuid.New()
	bidsKey := "auction:" + auctionID.String() + ":bids"
	floorKey := "auction:" + auctionID.String() + ":floor"
	streamKey := "bid-stream"

	encode := func(price int64) string {
		member, err := EncodeRecord(auction.BidRecord{
			BidID:       uuid.New(),
			AuctionID:   auctionID,
			BidderID:    uuid.New(),
			BidderName:  "tester",
			Price:       price,
			SubmittedAt: time.Now(),
		})
		require.NoError(t, err)
		return member
	}

	t.Run("出價寫入帳本並通知stream", func(t *testing.T) {
		mr.FlushAll()

		count, err := appendBidScript.Run(ctx, client,
			[]string{bidsKey, floorKey, streamKey},
			12000, encode(12000), 3600, auctionID.String(),
		).Int64()
		assert.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// 帳本有TTL
		ttl, err := client.TTL(ctx, bidsKey).Result()
		assert.NoError(t, err)
		assert.True(t, ttl > 0)

		// stream收到通知，帶有auctionId和出價內容
		streams, err := client.XRange(ctx, streamKey, "-", "+").Result()
		assert.NoError(t, err)
		require.Len(t, streams, 1)
		assert.Equal(t, auctionID.String(), streams[0].Values["auctionId"])

		record, err := DefaultParseFromMessage[auction.BidRecord](map[string]any{"data": streams[0].Values["data"]})
		assert.NoError(t, err)
		assert.Equal(t, int64(12000), record.Price)
	})

	t.Run("回傳值是帳本中的出價筆數", func(t *testing.T) {
		mr.FlushAll()

		for i := int64(1); i <= 3; i++ {
			count, err := appendBidScript.Run(ctx, client,
				[]string{bidsKey, floorKey, streamKey},
				1000*i, encode(1000*i), 3600, auctionID.String(),
			).Int64()
			assert.NoError(t, err)
			assert.Equal(t, i, count)
		}
	})

	t.Run("底價鍵存在時一併更新TTL", func(t *testing.T) {
		mr.FlushAll()
		mr.Set(floorKey, "5000")

		_, err := appendBidScript.Run(ctx, client,
			[]string{bidsKey, floorKey, streamKey},
			6000, encode(6000), 3600, auctionID.String(),
		).Int64()
		assert.NoError(t, err)

		ttl, err := client.TTL(ctx, floorKey).Result()
		assert.NoError(t, err)
		assert.True(t, ttl > 0)
	})

	t.Run("底價鍵不存在時不建立", func(t *testing.T) {
		mr.FlushAll()

		_, err := appendBidScript.Run(ctx, client,
			[]string{bidsKey, floorKey, streamKey},
			6000, encode(6000), 3600, auctionID.String(),
		).Int64()
		assert.NoError(t, err)

		exists, err := client.Exists(ctx, floorKey).Result()
		assert.NoError(t, err)
		assert.Equal(t, int64(0), exists)
	})
}
