package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"freshbid/models"
)

// Lifecycle 是拍賣生命週期控制器
// 狀態機只允許 SCHEDULED → IN_PROGRESS → ENDED，
// 每次轉移都要求操作者擁有該拍賣背後的直播場次
type Lifecycle struct {
	ledger Ledger
	store  Store
	logger *slog.Logger
}

// NewLifecycle 建立生命週期控制器
func NewLifecycle(ledger Ledger, store Store, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		ledger: ledger,
		store:  store,
		logger: logger.With(slog.String("caller", "Lifecycle")),
	}
}

// Start 將拍賣從 SCHEDULED 轉為 IN_PROGRESS，並登錄房間對應
// 狀態轉移以條件更新實作，同一場拍賣重複 start 只會有一次成功
func (l *Lifecycle) Start(ctx context.Context, auctionID, actorID uuid.UUID) error {
	const op = "Lifecycle.Start"

	auction, err := l.checkOwnership(ctx, auctionID, actorID)
	if err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	if err := l.store.UpdateAuctionStatus(ctx, auctionID, models.AuctionScheduled, models.AuctionInProgress); err != nil {
		return fmt.Errorf("[%s] Fail to transit auction status, err=%w", op, err)
	}
	if err := l.ledger.SetRoom(ctx, auctionID, auction.LiveID); err != nil {
		return fmt.Errorf("[%s] Fail to register room mapping, err=%w", op, err)
	}
	l.logger.Info("Auction started",
		slog.String("auctionID", auctionID.String()),
		slog.String("liveID", auction.LiveID.String()))
	return nil
}

// End 將拍賣從 IN_PROGRESS 轉為 ENDED
// 不會清除帳本等暫存狀態，呼叫端必須緊接著執行結算
func (l *Lifecycle) End(ctx context.Context, auctionID, actorID uuid.UUID) error {
	const op = "Lifecycle.End"

	if _, err := l.checkOwnership(ctx, auctionID, actorID); err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	if err := l.store.UpdateAuctionStatus(ctx, auctionID, models.AuctionInProgress, models.AuctionEnded); err != nil {
		return fmt.Errorf("[%s] Fail to transit auction status, err=%w", op, err)
	}
	l.logger.Info("Auction ended", slog.String("auctionID", auctionID.String()))
	return nil
}

// UpdatePreBid 更新尚未開始且沒有任何出價的拍賣
// 一旦帳本中有出價，拍賣就不允許再修改
func (l *Lifecycle) UpdatePreBid(ctx context.Context, auctionID, actorID uuid.UUID, startPrice int64, amount int32) error {
	const op = "Lifecycle.UpdatePreBid"

	auction, err := l.checkOwnership(ctx, auctionID, actorID)
	if err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	if auction.Status != models.AuctionScheduled {
		return fmt.Errorf("[%s] auction already started: %w", op, ErrInvalidState)
	}
	if startPrice <= 0 || amount <= 0 {
		return fmt.Errorf("[%s] start price and amount must be positive: %w", op, ErrValidation)
	}
	count, err := l.ledger.CountBids(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("[%s] Fail to count bids, err=%w", op, err)
	}
	if count > 0 {
		return fmt.Errorf("[%s] auction already has bids: %w", op, ErrInvalidState)
	}

	auction.StartPrice = startPrice
	auction.Amount = amount
	if err := l.store.UpdateAuction(ctx, auction); err != nil {
		return fmt.Errorf("[%s] Fail to update auction, err=%w", op, err)
	}
	return nil
}

// checkOwnership 確認操作者是拍賣背後直播場次的賣家
func (l *Lifecycle) checkOwnership(ctx context.Context, auctionID, actorID uuid.UUID) (*models.Auction, error) {
	auction, err := l.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Live == nil || auction.Live.SellerID != actorID {
		return nil, fmt.Errorf("user %s does not own auction %s: %w", actorID, auctionID, ErrForbidden)
	}
	return auction, nil
}
