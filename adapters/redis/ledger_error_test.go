package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const ledgerTestTTL = time.Minute

// Redis連線層的錯誤必須往上傳遞，而不是被吞掉
func TestLedgerRedisErrors(t *testing.T) {
	auctionID := uuid.New()
	bidsKey := fmt.Sprintf("test:auction:%s:bids", auctionID)
	floorKey := fmt.Sprintf("test:auction:%s:floor", auctionID)
	connErr := errors.New("redis connection error")

	tests := []struct {
		name  string
		setup func(mock redismock.ClientMock)
		run   func(ledger *Ledger) error
	}{
		{
			name: "TopBids讀取失敗",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectZRevRange(bidsKey, 0, -1).SetErr(connErr)
			},
			run: func(ledger *Ledger) error {
				_, err := ledger.TopBids(context.Background(), auctionID, 0)
				return err
			},
		},
		{
			name: "CountBids讀取失敗",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectZCard(bidsKey).SetErr(connErr)
			},
			run: func(ledger *Ledger) error {
				_, err := ledger.CountBids(context.Background(), auctionID)
				return err
			},
		},
		{
			name: "GetFloor讀取失敗",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet(floorKey).SetErr(connErr)
			},
			run: func(ledger *Ledger) error {
				_, _, err := ledger.GetFloor(context.Background(), auctionID)
				return err
			},
		},
		{
			name: "GetFloor的值不是整數",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet(floorKey).SetVal("not-a-number")
			},
			run: func(ledger *Ledger) error {
				_, _, err := ledger.GetFloor(context.Background(), auctionID)
				return err
			},
		},
		{
			name: "SetFloor寫入失敗",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectSet(floorKey, int64(5000), ledgerTestTTL).SetErr(connErr)
			},
			run: func(ledger *Ledger) error {
				return ledger.SetFloor(context.Background(), auctionID, 5000)
			},
		},
		{
			name: "ClearAuction刪除失敗",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectDel(bidsKey, floorKey).SetErr(connErr)
			},
			run: func(ledger *Ledger) error {
				return ledger.ClearAuction(context.Background(), auctionID)
			},
		},
		{
			name: "GetRoom的值不是UUID",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectHGet("test:auction:rooms", auctionID.String()).SetVal("garbage")
			},
			run: func(ledger *Ledger) error {
				_, _, err := ledger.GetRoom(context.Background(), auctionID)
				return err
			},
		},
		{
			name: "ListRooms讀取失敗",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectHGetAll("test:auction:rooms").SetErr(connErr)
			},
			run: func(ledger *Ledger) error {
				_, err := ledger.ListRooms(context.Background())
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock, cleanup := setupMock(t)
			defer cleanup()

			tt.setup(mock)

			ledger := NewLedger(client, "bid-stream", nil,
				WithLedgerPrefix("test:"), WithLedgerTTL(ledgerTestTTL))
			assert.Error(t, tt.run(ledger))
		})
	}
}
