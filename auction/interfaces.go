package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"freshbid/models"
)

// Ledger 定義了暫存出價帳本的操作介面
// 實作在 adapters/redis，帳本以價格排序，所有 per-auction 鍵都帶有保險用的 TTL
type Ledger interface {
	// AppendBid 將一筆出價寫入帳本並更新 TTL，整個操作是原子的
	AppendBid(ctx context.Context, record BidRecord) error
	// TopBids 讀取價格最高的前 limit 筆出價，limit 為 0 時讀取全部
	// 排序為價格由高至低，同價以先出價者優先；無法反序列化的紀錄會被跳過
	TopBids(ctx context.Context, auctionID uuid.UUID, limit int64) ([]BidRecord, error)
	// CountBids 回傳帳本中的出價筆數
	CountBids(ctx context.Context, auctionID uuid.UUID) (int64, error)
	// ClearAuction 刪除該拍賣的所有出價與底價
	ClearAuction(ctx context.Context, auctionID uuid.UUID) error

	// SetFloor 寫入目前的競標底價（由外部排程器呼叫）
	SetFloor(ctx context.Context, auctionID uuid.UUID, price int64) error
	// GetFloor 讀取目前的競標底價，尚未發布時回傳 (0, false)
	GetFloor(ctx context.Context, auctionID uuid.UUID) (int64, bool, error)

	// SetRoom 登錄拍賣與直播房間的對應
	SetRoom(ctx context.Context, auctionID, liveID uuid.UUID) error
	// GetRoom 查詢拍賣所在的直播房間
	GetRoom(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, bool, error)
	// DeleteRoom 移除拍賣與直播房間的對應
	DeleteRoom(ctx context.Context, auctionID uuid.UUID) error
	// ListRooms 列出所有進行中的拍賣與其房間，供排程器的廣播 tick 使用
	ListRooms(ctx context.Context) (map[uuid.UUID]uuid.UUID, error)
}

// Store 定義了結算服務需要的永久儲存操作
// 實作在 store.go，以 gorm 對 PostgreSQL 操作
type Store interface {
	// GetAuction 讀取拍賣及其直播與商品資訊
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	// UpdateAuction 更新拍賣的起標價與數量（僅限尚未有出價的拍賣，由呼叫端把關）
	UpdateAuction(ctx context.Context, auction *models.Auction) error
	// UpdateAuctionStatus 以條件更新做狀態轉移，
	// 只有目前狀態等於 expected 時才會成功，否則回傳 ErrInvalidState
	UpdateAuctionStatus(ctx context.Context, auctionID uuid.UUID, expected, next models.AuctionStatus) error
	// SettleAuction 在單一交易中寫入得標與出價紀錄並建立訂單
	// 同一筆得標紀錄已經有訂單時回傳 ErrConflict
	SettleAuction(ctx context.Context, awarded BidRecord, bids []BidRecord) (*Award, error)
	// NextBidHistory 讀取該拍賣中價格最高的 BID 紀錄
	// 同價時以 actionTime 較早者優先；沒有剩餘紀錄時回傳 ErrNotFound
	NextBidHistory(ctx context.Context, auctionID uuid.UUID) (*models.AuctionHistory, error)
	// PromoteHistory 將指定的 BID 紀錄就地升級為 AWARDED
	PromoteHistory(ctx context.Context, historyID uuid.UUID) error
	// MarkHistoryPaid 在訂單付款後將 AWARDED 紀錄轉為 PAID
	MarkHistoryPaid(ctx context.Context, historyID uuid.UUID) error
}

// Notifier 定義了賣家通知的操作介面
// 拍賣流標（沒有任何出價、或遞補時已無人可遞補）時通知賣家
type Notifier interface {
	NotifyAuctionFailed(ctx context.Context, sellerID, auctionID uuid.UUID, reason string) error
}

// Mutex 定義了結算用分散式鎖的操作介面
// 由 adapters/redis 的 AutoRenewMutex 實作
type Mutex interface {
	// Lock 取得鎖，回傳帶鎖狀態的 context，鎖失效時 context 會被取消
	Lock(ctx context.Context) (context.Context, error)
	// Unlock 釋放鎖
	Unlock() (bool, error)
}

// LockFactory 為每場拍賣建立專屬的結算鎖
type LockFactory func(auctionID uuid.UUID) Mutex

// Clock 抽換時間來源，方便測試
type Clock func() time.Time
