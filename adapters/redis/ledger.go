package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"freshbid/auction"
)

// Ledger 實作了 auction.Ledger 介面，提供基於 Redis 的暫存出價帳本
// 每場拍賣一個 ZSET，分數是出價金額，成員是序列化後的出價紀錄；
// 所有 per-auction 鍵都帶有數小時的 TTL，作為拍賣被棄置時的孤兒保險
type Ledger struct {
	client  *redis.Client
	logger  *slog.Logger
	options LedgerOptions
}

// LedgerOptions 定義了 Ledger 的配置選項
type LedgerOptions struct {
	Prefix    string
	TTL       time.Duration
	BidStream string
}

type LedgerOption func(*LedgerOptions)

// WithLedgerPrefix 設定帳本的 key 前綴
func WithLedgerPrefix(prefix string) LedgerOption {
	return func(o *LedgerOptions) {
		o.Prefix = prefix
	}
}

// WithLedgerTTL 設定 per-auction 鍵的保險 TTL
func WithLedgerTTL(ttl time.Duration) LedgerOption {
	return func(o *LedgerOptions) {
		o.TTL = ttl
	}
}

// NewLedger 建立一個新的 Ledger 實例
// bidStream 是受理出價時要通知各節點的 stream 鍵
func NewLedger(client *redis.Client, bidStream string, logger *slog.Logger, opts ...LedgerOption) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	options := LedgerOptions{
		TTL:       6 * time.Hour,
		BidStream: bidStream,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Ledger{
		client:  client,
		logger:  logger.With(slog.String("caller", "Ledger")),
		options: options,
	}
}

func (l *Ledger) bidsKey(auctionID uuid.UUID) string {
	return fmt.Sprintf("%sauction:%s:bids", l.options.Prefix, auctionID)
}

func (l *Ledger) floorKey(auctionID uuid.UUID) string {
	return fmt.Sprintf("%sauction:%s:floor", l.options.Prefix, auctionID)
}

func (l *Ledger) roomsKey() string {
	return l.options.Prefix + "auction:rooms"
}

// AppendBid 將一筆出價原子地寫入帳本
// 透過 Lua script 一次完成 ZADD、TTL 更新與 stream 通知
func (l *Ledger) AppendBid(ctx context.Context, record auction.BidRecord) error {
	const op = "Ledger.AppendBid"
	member, err := EncodeRecord(record)
	if err != nil {
		return fmt.Errorf("[%s] Fail to encode bid record, err=%w", op, err)
	}

	err = appendBidScript.Run(ctx, l.client,
		[]string{l.bidsKey(record.AuctionID), l.floorKey(record.AuctionID), l.options.BidStream},
		record.Price, member, int64(l.options.TTL.Seconds()), record.AuctionID.String(),
	).Err()
	if err != nil {
		return fmt.Errorf("[%s] Fail to append bid, err=%w", op, err)
	}
	return nil
}

// TopBids 讀取價格最高的前 limit 筆出價，limit 為 0 時讀取全部
// ZSET 分數只有價格，同價的先後順序在讀取時以 submittedAt 補齊：
// 價格高者優先，同價以較早出價者優先，最後以 bidId 保證全序。
// 無法反序列化的成員會記錄後跳過，不會讓整次讀取失敗
func (l *Ledger) TopBids(ctx context.Context, auctionID uuid.UUID, limit int64) ([]auction.BidRecord, error) {
	const op = "Ledger.TopBids"
	members, err := l.client.ZRevRange(ctx, l.bidsKey(auctionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to read ledger, err=%w", op, err)
	}

	records := make([]auction.BidRecord, 0, len(members))
	for _, member := range members {
		record, err := DecodeRecord[auction.BidRecord](member)
		if err != nil {
			l.logger.Warn("Skip unreadable bid record",
				slog.String("auctionID", auctionID.String()),
				slog.Any("error", errors.Join(auction.ErrUnreadable, err)))
			continue
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Price != records[j].Price {
			return records[i].Price > records[j].Price
		}
		if !records[i].SubmittedAt.Equal(records[j].SubmittedAt) {
			return records[i].SubmittedAt.Before(records[j].SubmittedAt)
		}
		return records[i].BidID.String() < records[j].BidID.String()
	})

	if limit > 0 && int64(len(records)) > limit {
		records = records[:limit]
	}
	return records, nil
}

// CountBids 回傳帳本中的出價筆數
func (l *Ledger) CountBids(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	const op = "Ledger.CountBids"
	count, err := l.client.ZCard(ctx, l.bidsKey(auctionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("[%s] Fail to count bids, err=%w", op, err)
	}
	return count, nil
}

// ClearAuction 刪除該拍賣的所有出價與底價
func (l *Ledger) ClearAuction(ctx context.Context, auctionID uuid.UUID) error {
	const op = "Ledger.ClearAuction"
	if err := l.client.Del(ctx, l.bidsKey(auctionID), l.floorKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to clear auction keys, err=%w", op, err)
	}
	return nil
}

// SetFloor 寫入目前的競標底價，同時更新保險 TTL
func (l *Ledger) SetFloor(ctx context.Context, auctionID uuid.UUID, price int64) error {
	const op = "Ledger.SetFloor"
	if err := l.client.Set(ctx, l.floorKey(auctionID), price, l.options.TTL).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to set floor, err=%w", op, err)
	}
	return nil
}

// GetFloor 讀取目前的競標底價，尚未發布時回傳 (0, false)
func (l *Ledger) GetFloor(ctx context.Context, auctionID uuid.UUID) (int64, bool, error) {
	const op = "Ledger.GetFloor"
	value, err := l.client.Get(ctx, l.floorKey(auctionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("[%s] Fail to get floor, err=%w", op, err)
	}
	price, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("[%s] invalid floor value %q, err=%w", op, value, err)
	}
	return price, true, nil
}

// DeleteFloor 刪除競標底價
func (l *Ledger) DeleteFloor(ctx context.Context, auctionID uuid.UUID) error {
	const op = "Ledger.DeleteFloor"
	if err := l.client.Del(ctx, l.floorKey(auctionID)).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to delete floor, err=%w", op, err)
	}
	return nil
}

// SetRoom 登錄拍賣與直播房間的對應
// 對應存在共用的 hash 中，方便排程器一次列出所有進行中的拍賣
func (l *Ledger) SetRoom(ctx context.Context, auctionID, liveID uuid.UUID) error {
	const op = "Ledger.SetRoom"
	if err := l.client.HSet(ctx, l.roomsKey(), auctionID.String(), liveID.String()).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to set room mapping, err=%w", op, err)
	}
	return nil
}

// GetRoom 查詢拍賣所在的直播房間
func (l *Ledger) GetRoom(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, bool, error) {
	const op = "Ledger.GetRoom"
	value, err := l.client.HGet(ctx, l.roomsKey(), auctionID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("[%s] Fail to get room mapping, err=%w", op, err)
	}
	liveID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("[%s] invalid room id %q, err=%w", op, value, err)
	}
	return liveID, true, nil
}

// DeleteRoom 移除拍賣與直播房間的對應
func (l *Ledger) DeleteRoom(ctx context.Context, auctionID uuid.UUID) error {
	const op = "Ledger.DeleteRoom"
	if err := l.client.HDel(ctx, l.roomsKey(), auctionID.String()).Err(); err != nil {
		return fmt.Errorf("[%s] Fail to delete room mapping, err=%w", op, err)
	}
	return nil
}

// ListRooms 列出所有進行中的拍賣與其房間
// 供外部排程器的廣播 tick 使用；無法解析的欄位會記錄後跳過
func (l *Ledger) ListRooms(ctx context.Context) (map[uuid.UUID]uuid.UUID, error) {
	const op = "Ledger.ListRooms"
	entries, err := l.client.HGetAll(ctx, l.roomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to list room mappings, err=%w", op, err)
	}

	rooms := make(map[uuid.UUID]uuid.UUID, len(entries))
	for field, value := range entries {
		auctionID, err := uuid.Parse(field)
		if err != nil {
			l.logger.Warn("Skip invalid room mapping field", slog.String("field", field))
			continue
		}
		liveID, err := uuid.Parse(value)
		if err != nil {
			l.logger.Warn("Skip invalid room mapping value", slog.String("value", value))
			continue
		}
		rooms[auctionID] = liveID
	}
	return rooms, nil
}
