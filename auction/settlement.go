package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"freshbid/models"
)

// Settlement 是結算服務
// 拍賣結束後把帳本中的出價搬進永久歷史、選出得標者並建立訂單；
// 訂單作廢後負責從歷史紀錄中遞補次高出價者
type Settlement struct {
	ledger  Ledger
	store   Store
	newLock LockFactory
	logger  *slog.Logger
}

// NewSettlement 建立結算服務
// newLock 提供 per-auction 的分散式鎖，確保同一場拍賣的結算只有單一寫入者
func NewSettlement(ledger Ledger, store Store, newLock LockFactory, logger *slog.Logger) *Settlement {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settlement{
		ledger:  ledger,
		store:   store,
		newLock: newLock,
		logger:  logger.With(slog.String("caller", "Settlement")),
	}
}

// Finalize 結算一場拍賣
// 回傳得標結果；帳本為空時回傳 (nil, nil)，由呼叫端通知賣家流標。
// 永久紀錄（歷史 + 訂單）會在單一交易中先行寫入，確認成功後才清除暫存狀態，
// 這樣即使清除失敗也只會留下待 TTL 回收的殘留，不會遺失得標結果
func (s *Settlement) Finalize(ctx context.Context, auctionID uuid.UUID) (*Award, error) {
	const op = "Settlement.Finalize"

	mutex := s.newLock(auctionID)
	lockCtx, err := mutex.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to acquire settlement lock, err=%w", op, err)
	}
	defer func() {
		if _, err := mutex.Unlock(); err != nil {
			s.logger.Warn("Fail to release settlement lock",
				slog.String("auctionID", auctionID.String()),
				slog.Any("error", err))
		}
	}()

	bids, err := s.ledger.TopBids(lockCtx, auctionID, 0)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to read ledger, err=%w", op, err)
	}
	if len(bids) == 0 {
		s.logger.Info("Auction finalized without bids", slog.String("auctionID", auctionID.String()))
		if err := s.clearEphemeral(lockCtx, auctionID); err != nil {
			return nil, fmt.Errorf("[%s] %w", op, err)
		}
		return nil, nil
	}

	// 排行榜首位是得標者，其餘以 BID 寫入歷史
	award, err := s.store.SettleAuction(lockCtx, bids[0], bids[1:])
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to settle auction, err=%w", op, err)
	}

	if err := s.clearEphemeral(lockCtx, auctionID); err != nil {
		// 永久紀錄已經提交，殘留的暫存鍵會由 TTL 回收，但仍須讓呼叫端知道
		return award, fmt.Errorf("[%s] settled but %w", op, err)
	}

	s.logger.Info("Auction settled",
		slog.String("auctionID", auctionID.String()),
		slog.String("winner", award.BidderID.String()),
		slog.Int64("price", award.Price))
	return award, nil
}

// ProcessNextBidder 在得標訂單作廢後遞補次高出價者
// 從歷史紀錄中選出價格最高的 BID（同價以較早者優先）就地升級為 AWARDED；
// 沒有人可遞補時回傳 (nil, nil)，由呼叫端通知賣家流標。
// 遞補者的新訂單由外部的訂單流程建立，不在這裡處理
func (s *Settlement) ProcessNextBidder(ctx context.Context, auctionID uuid.UUID) (*models.AuctionHistory, error) {
	const op = "Settlement.ProcessNextBidder"

	history, err := s.store.NextBidHistory(ctx, auctionID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("No bidder left to promote", slog.String("auctionID", auctionID.String()))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to find next bidder, err=%w", op, err)
	}

	if err := s.store.PromoteHistory(ctx, history.ID); err != nil {
		return nil, fmt.Errorf("[%s] Fail to promote history, err=%w", op, err)
	}
	history.Action = models.HistoryAwarded
	s.logger.Info("Next bidder promoted",
		slog.String("auctionID", auctionID.String()),
		slog.String("bidderID", history.BidderID.String()),
		slog.Int64("price", history.Price))
	return history, nil
}

func (s *Settlement) clearEphemeral(ctx context.Context, auctionID uuid.UUID) error {
	if err := s.ledger.ClearAuction(ctx, auctionID); err != nil {
		return fmt.Errorf("fail to clear ledger, err=%w", err)
	}
	if err := s.ledger.DeleteRoom(ctx, auctionID); err != nil {
		return fmt.Errorf("fail to remove room mapping, err=%w", err)
	}
	return nil
}
