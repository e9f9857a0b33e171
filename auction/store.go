package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"freshbid/models"
)

// GormStore 以 gorm 實作 Store 介面
// 永久儲存只會被結算服務與遞補流程寫入
type GormStore struct {
	db *gorm.DB
}

// NewStore 建立永久儲存的存取層
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetAuction 讀取拍賣及其直播與商品資訊
func (s *GormStore) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	const op = "GormStore.GetAuction"
	auction := models.Auction{ID: auctionID}
	if result := s.db.WithContext(ctx).Preload("Live").Preload("Product").First(&auction); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("[%s] auction %s: %w", op, auctionID, ErrNotFound)
		}
		return nil, fmt.Errorf("[%s] Fail to find auction, err=%w", op, result.Error)
	}
	return &auction, nil
}

// UpdateAuction 更新拍賣的起標價與數量
func (s *GormStore) UpdateAuction(ctx context.Context, auction *models.Auction) error {
	const op = "GormStore.UpdateAuction"
	result := s.db.WithContext(ctx).Model(&models.Auction{ID: auction.ID}).
		Updates(map[string]any{"start_price": auction.StartPrice, "amount": auction.Amount})
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to update auction, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("[%s] auction %s: %w", op, auction.ID, ErrNotFound)
	}
	return nil
}

// UpdateAuctionStatus 以條件更新做狀態轉移
// WHERE 條件同時比對目前狀態，重複的轉移只會有一次成功
func (s *GormStore) UpdateAuctionStatus(ctx context.Context, auctionID uuid.UUID, expected, next models.AuctionStatus) error {
	const op = "GormStore.UpdateAuctionStatus"
	result := s.db.WithContext(ctx).Model(&models.Auction{}).
		Where("id = ? AND status = ?", auctionID, expected).
		Update("status", next)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to update auction status, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Auction{}).Where("id = ?", auctionID).Count(&count).Error; err != nil {
			return fmt.Errorf("[%s] Fail to check auction existence, err=%w", op, err)
		}
		if count == 0 {
			return fmt.Errorf("[%s] auction %s: %w", op, auctionID, ErrNotFound)
		}
		return fmt.Errorf("[%s] auction %s is not %s: %w", op, auctionID, expected, ErrInvalidState)
	}
	return nil
}

// SettleAuction 在單一交易中寫入歷史紀錄並建立訂單
// 排行榜首位寫入 AWARDED，其餘寫入 BID；該拍賣已有訂單時回傳 ErrConflict
func (s *GormStore) SettleAuction(ctx context.Context, awarded BidRecord, bids []BidRecord) (*Award, error) {
	const op = "GormStore.SettleAuction"
	var award Award

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		auction := models.Auction{ID: awarded.AuctionID}
		if result := tx.Preload("Live").First(&auction); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("auction %s: %w", awarded.AuctionID, ErrNotFound)
			}
			return fmt.Errorf("fail to find auction, err=%w", result.Error)
		}

		// 重複結算的保險：同一場拍賣已經有訂單就拒絕
		var count int64
		if err := tx.Model(&models.Order{}).Where("auction_id = ?", awarded.AuctionID).Count(&count).Error; err != nil {
			return fmt.Errorf("fail to check existing order, err=%w", err)
		}
		if count > 0 {
			return fmt.Errorf("auction %s already has an order: %w", awarded.AuctionID, ErrConflict)
		}

		awardRow := models.AuctionHistory{
			AuctionID:  awarded.AuctionID,
			BidderID:   awarded.BidderID,
			Action:     models.HistoryAwarded,
			Price:      awarded.Price,
			ActionTime: awarded.SubmittedAt,
		}
		if result := tx.Create(&awardRow); result.Error != nil {
			return fmt.Errorf("fail to create awarded history, err=%w", result.Error)
		}

		if len(bids) > 0 {
			bidRows := lo.Map(bids, func(bid BidRecord, _ int) models.AuctionHistory {
				return models.AuctionHistory{
					AuctionID:  bid.AuctionID,
					BidderID:   bid.BidderID,
					Action:     models.HistoryBid,
					Price:      bid.Price,
					ActionTime: bid.SubmittedAt,
				}
			})
			if result := tx.Create(&bidRows); result.Error != nil {
				return fmt.Errorf("fail to create bid history, err=%w", result.Error)
			}
		}

		order := models.Order{
			AuctionID: awarded.AuctionID,
			HistoryID: awardRow.ID,
			BuyerID:   awarded.BidderID,
			SellerID:  auction.Live.SellerID,
			Price:     awarded.Price,
			Status:    models.OrderAwaitingPayment,
		}
		if result := tx.Create(&order); result.Error != nil {
			return fmt.Errorf("fail to create order, err=%w", result.Error)
		}

		award = Award{
			AuctionID: awarded.AuctionID,
			HistoryID: awardRow.ID,
			BidderID:  awarded.BidderID,
			Price:     awarded.Price,
			AwardedAt: awarded.SubmittedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}
	return &award, nil
}

// NextBidHistory 讀取該拍賣中價格最高的 BID 紀錄，同價以較早者優先
func (s *GormStore) NextBidHistory(ctx context.Context, auctionID uuid.UUID) (*models.AuctionHistory, error) {
	const op = "GormStore.NextBidHistory"
	var history models.AuctionHistory
	result := s.db.WithContext(ctx).
		Where("auction_id = ? AND action = ?", auctionID, models.HistoryBid).
		Order("price DESC, action_time ASC").
		First(&history)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("[%s] no bid history for auction %s: %w", op, auctionID, ErrNotFound)
		}
		return nil, fmt.Errorf("[%s] Fail to find bid history, err=%w", op, result.Error)
	}
	return &history, nil
}

// PromoteHistory 將 BID 紀錄就地升級為 AWARDED
func (s *GormStore) PromoteHistory(ctx context.Context, historyID uuid.UUID) error {
	const op = "GormStore.PromoteHistory"
	result := s.db.WithContext(ctx).Model(&models.AuctionHistory{}).
		Where("id = ? AND action = ?", historyID, models.HistoryBid).
		Update("action", models.HistoryAwarded)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to promote history, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("[%s] history %s is not a BID record: %w", op, historyID, ErrInvalidState)
	}
	return nil
}

// MarkHistoryPaid 在訂單付款後將 AWARDED 紀錄轉為 PAID
func (s *GormStore) MarkHistoryPaid(ctx context.Context, historyID uuid.UUID) error {
	const op = "GormStore.MarkHistoryPaid"
	result := s.db.WithContext(ctx).Model(&models.AuctionHistory{}).
		Where("id = ? AND action = ?", historyID, models.HistoryAwarded).
		Update("action", models.HistoryPaid)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to mark history paid, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("[%s] history %s is not an AWARDED record: %w", op, historyID, ErrInvalidState)
	}
	return nil
}
