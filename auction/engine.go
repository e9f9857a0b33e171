package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"freshbid/models"
)

// Engine 是競標引擎，負責驗證出價並寫入排序帳本
// 出價只需要高於目前底價，不需要高於當前最高價（底價拍賣制）
// 落後的出價會保留在帳本中，供訂單作廢後的遞補使用
type Engine struct {
	ledger Ledger
	store  Store
	logger *slog.Logger
	now    Clock
}

type EngineOption func(*Engine)

// WithEngineLogger 設置日誌記錄器
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEngineClock 抽換時間來源（主要用於測試）
func WithEngineClock(now Clock) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine 建立競標引擎
func NewEngine(ledger Ledger, store Store, opts ...EngineOption) *Engine {
	engine := &Engine{
		ledger: ledger,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	engine.logger = engine.logger.With(slog.String("caller", "Engine"))
	return engine
}

// SubmitBid 驗證並受理一筆出價
// 前置條件：拍賣存在且狀態為 IN_PROGRESS、出價不低於目前底價
// 底價尚未發布時以起標價為準。驗證通過後出價會被原子地寫入帳本
func (e *Engine) SubmitBid(ctx context.Context, auctionID, bidderID uuid.UUID, bidderName string, price int64) (BidRecord, error) {
	const op = "Engine.SubmitBid"

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return BidRecord{}, fmt.Errorf("[%s] Fail to find auction, err=%w", op, err)
	}
	if auction.Status != models.AuctionInProgress {
		return BidRecord{}, fmt.Errorf("[%s] auction is not in progress: %w", op, ErrInvalidState)
	}
	if price <= 0 {
		return BidRecord{}, fmt.Errorf("[%s] bid price must be positive: %w", op, ErrValidation)
	}

	// 底價的讀取與出價的寫入之間沒有同步，出價可能落在底價更新的前後，
	// 但以檢查當下讀到的底價為準，不會產生不一致的狀態
	floor, err := e.currentFloor(ctx, auction)
	if err != nil {
		return BidRecord{}, fmt.Errorf("[%s] Fail to read current floor, err=%w", op, err)
	}
	if price < floor {
		return BidRecord{}, fmt.Errorf("[%s] bid %d is below floor %d: %w", op, price, floor, ErrValidation)
	}

	record := BidRecord{
		BidID:       uuid.New(),
		AuctionID:   auctionID,
		BidderID:    bidderID,
		BidderName:  bidderName,
		Price:       price,
		SubmittedAt: e.now(),
	}
	if err := e.ledger.AppendBid(ctx, record); err != nil {
		return BidRecord{}, fmt.Errorf("[%s] Fail to append bid, err=%w", op, err)
	}
	e.logger.Info("Bid accepted",
		slog.String("auctionID", auctionID.String()),
		slog.String("bidderID", bidderID.String()),
		slog.Int64("price", price))
	return record, nil
}

// BidStatus 回傳排行榜與目前最高價
// limit 為 0 時回傳全部；帳本為空時最高價為起標價
func (e *Engine) BidStatus(ctx context.Context, auctionID uuid.UUID, limit int64) (Status, error) {
	const op = "Engine.BidStatus"

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return Status{}, fmt.Errorf("[%s] Fail to find auction, err=%w", op, err)
	}

	bids, err := e.ledger.TopBids(ctx, auctionID, limit)
	if err != nil {
		return Status{}, fmt.Errorf("[%s] Fail to read bids, err=%w", op, err)
	}

	status := Status{
		AuctionID:      auctionID,
		AuctionStatus:  auction.Status,
		CurrentHighest: auction.StartPrice,
		Bids:           bids,
	}
	if len(bids) > 0 {
		status.CurrentHighest = bids[0].Price
	}
	return status, nil
}

// CurrentFloor 回傳目前的競標底價，尚未發布時為起標價
func (e *Engine) CurrentFloor(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	const op = "Engine.CurrentFloor"
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return 0, fmt.Errorf("[%s] Fail to find auction, err=%w", op, err)
	}
	return e.currentFloor(ctx, auction)
}

func (e *Engine) currentFloor(ctx context.Context, auction *models.Auction) (int64, error) {
	floor, ok, err := e.ledger.GetFloor(ctx, auction.ID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return auction.StartPrice, nil
	}
	return floor, nil
}
