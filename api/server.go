package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	redisAdapter "freshbid/adapters/redis"
	"freshbid/adapters/sse"
	"freshbid/auction"
)

type ServerImpl struct {
	db          *gorm.DB
	redisClient *redis.Client

	ledger     auction.Ledger
	store      auction.Store
	engine     *auction.Engine
	lifecycle  *auction.Lifecycle
	settlement *auction.Settlement
	notifier   auction.Notifier

	broker        sse.IBroker[auction.RoomEvent]
	eventProducer redisAdapter.IProducer[RoomPublish]
	voidProducer  redisAdapter.IProducer[OrderVoid]
	bidConsumer   redisAdapter.IConsumer[auction.BidRecord]
	eventConsumer redisAdapter.IConsumer[RoomPublish]
	voidConsumer  redisAdapter.IGroupConsumer[OrderVoid]

	htmlChecker *bluemonday.Policy
	wg          sync.WaitGroup
	cancelFunc  context.CancelFunc

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// 初始化出價帳本
	ledger := redisAdapter.NewLedger(
		redisClient,
		config.Redis.StreamKeys.Bids,
		slog.Default(),
		redisAdapter.WithLedgerPrefix(config.Redis.KeyPrefix),
		redisAdapter.WithLedgerTTL(config.Redis.ExpireTime),
	)

	// 初始化stream producer/consumer
	eventProducer, err := redisAdapter.NewProducer[RoomPublish](redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event producer, err=%w", op, err)
	}
	voidProducer, err := redisAdapter.NewProducer[OrderVoid](redisClient, config.Redis.StreamKeys.OrderVoid)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create order-void producer, err=%w", op, err)
	}
	bidConsumer, err := redisAdapter.NewConsumer[auction.BidRecord](redisClient, config.Redis.StreamKeys.Bids)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create bid consumer, err=%w", op, err)
	}
	eventConsumer, err := redisAdapter.NewConsumer[RoomPublish](redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event consumer, err=%w", op, err)
	}
	voidConsumer, err := redisAdapter.NewGroupConsumer[OrderVoid](
		redisClient,
		config.Redis.StreamKeys.OrderVoid,
		config.Redis.ConsumerGroup,
		config.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create order-void group consumer, err=%w", op, err)
	}

	// 初始化domain服務
	store := auction.NewStore(db)
	engine := auction.NewEngine(ledger, store)
	lifecycle := auction.NewLifecycle(ledger, store, slog.Default())
	newLock := func(auctionID uuid.UUID) auction.Mutex {
		lockKey := fmt.Sprintf("%sauction:%s:settle-lock", config.Redis.KeyPrefix, auctionID)
		return redisAdapter.NewAutoRenewMutex(redisClient, lockKey)
	}
	settlement := auction.NewSettlement(ledger, store, newLock, slog.Default())
	notifier := NewStreamNotifier(eventProducer, slog.Default())

	return &ServerImpl{
		db:            db,
		redisClient:   redisClient,
		ledger:        ledger,
		store:         store,
		engine:        engine,
		lifecycle:     lifecycle,
		settlement:    settlement,
		notifier:      notifier,
		broker:        sse.NewBroker[auction.RoomEvent](),
		eventProducer: eventProducer,
		voidProducer:  voidProducer,
		bidConsumer:   bidConsumer,
		eventConsumer: eventConsumer,
		voidConsumer:  voidConsumer,
		htmlChecker:   bluemonday.UGCPolicy(),
		config:        config,
	}, nil
}

func (impl *ServerImpl) Start() error {
	const op = "ServerImpl.Start"
	impl.eventProducer.Start()
	impl.voidProducer.Start()
	impl.bidConsumer.Start()
	impl.eventConsumer.Start()
	if err := impl.voidConsumer.Start(); err != nil {
		return fmt.Errorf("[%s] Fail to start order-void consumer, err=%w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel

	// 出價事件：每個節點各自從帳本讀出排行榜，遮罩後廣播給本地房間
	impl.wg.Add(1)
	go func() {
		logger := slog.Default().With(slog.String("caller", "BidRelay"))
		defer impl.wg.Done()
		defer logger.Info("bid relay worker stopped")
		for record := range impl.bidConsumer.Subscribe() {
			if err := impl.BroadcastBidStatus(ctx, record.AuctionID); err != nil {
				logger.Error("Fail to broadcast bid status",
					slog.String("auctionID", record.AuctionID.String()),
					slog.Any("error", err))
			}
		}
	}()

	// 房間事件：直接轉發給本地訂閱者
	impl.wg.Add(1)
	go func() {
		logger := slog.Default().With(slog.String("caller", "EventRelay"))
		defer impl.wg.Done()
		defer logger.Info("event relay worker stopped")
		for msg := range impl.eventConsumer.Subscribe() {
			logger.Debug("Relay room event", slog.String("channel", msg.Channel), slog.String("type", msg.Event.Type))
			impl.broker.Broadcast(msg.Channel, msg.Event)
		}
	}()

	// 訂單作廢：全域只有一個節點處理每筆作廢，執行遞補
	slog.Info("Start order-void worker")
	impl.wg.Add(1)
	go func() {
		logger := slog.Default().With(slog.String("caller", "OrderVoidWorker"))
		defer impl.wg.Done()
		defer logger.Info("order-void worker stopped")
		ch := impl.voidConsumer.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				logger.Debug("Receive order-void message", slog.String("orderID", msg.Data.OrderID.String()))
				handleErr := impl.handleOrderVoid(ctx, msg.Data)
				if handleErr != nil {
					logger.Error("Fail to process order void", slog.Any("error", handleErr))
					if err := msg.Fail(ctx, handleErr); err != nil {
						logger.Error("Fail to fail message", slog.Any("error", err))
					}
					continue
				}
				if err := msg.Done(ctx); err != nil {
					logger.Error("Processed but fail to done message", slog.Any("error", err))
					if err := msg.Fail(ctx, err); err != nil {
						logger.Error("Processed but fail to fail message", slog.Any("error", err))
					}
				}
			}
		}
	}()

	return nil
}

// handleOrderVoid 在得標訂單作廢後遞補次高出價者
// 有人可遞補時向其個人頻道發出得標通知，無人可遞補時通知賣家流標
func (impl *ServerImpl) handleOrderVoid(ctx context.Context, void OrderVoid) error {
	history, err := impl.settlement.ProcessNextBidder(ctx, void.AuctionID)
	if err != nil {
		return fmt.Errorf("fail to promote next bidder, err=%w", err)
	}

	theAuction, err := impl.store.GetAuction(ctx, void.AuctionID)
	if err != nil {
		return fmt.Errorf("fail to find auction, err=%w", err)
	}
	if theAuction.Live == nil {
		return fmt.Errorf("auction %s has no live session: %w", void.AuctionID, auction.ErrNotFound)
	}

	if history == nil {
		if err := impl.notifier.NotifyAuctionFailed(ctx, theAuction.Live.SellerID, void.AuctionID, "no bidder left to promote"); err != nil {
			return fmt.Errorf("fail to notify auction failure, err=%w", err)
		}
		return nil
	}

	return impl.publishWinningBid(history.BidderID, theAuction.Live.SellerID, void.AuctionID, history.Price)
}

// publishWinningBid 發出得標通知
// 得標者與賣家的個人頻道各收到一份，讓主持人知道得標者與成交價
func (impl *ServerImpl) publishWinningBid(bidderID, sellerID, auctionID uuid.UUID, price int64) error {
	event := auction.RoomEvent{
		Type:      auction.EventWinningBidResult,
		Success:   lo.ToPtr(true),
		AuctionID: auctionID,
		UserID:    bidderID,
		BidPrice:  price,
	}
	if err := impl.eventProducer.Publish(RoomPublish{Channel: userChannel(bidderID), Event: event}); err != nil {
		return fmt.Errorf("fail to publish winning bid result, err=%w", err)
	}
	if sellerID != bidderID {
		if err := impl.eventProducer.Publish(RoomPublish{Channel: userChannel(sellerID), Event: event}); err != nil {
			return fmt.Errorf("fail to echo winning bid result to host, err=%w", err)
		}
	}
	return nil
}

// BroadcastBidStatus 將目前排行榜遮罩後廣播給拍賣所在的房間
// 房間對應不存在（拍賣已結算或不在本系統）時靜默返回
func (impl *ServerImpl) BroadcastBidStatus(ctx context.Context, auctionID uuid.UUID) error {
	const op = "ServerImpl.BroadcastBidStatus"

	liveID, ok, err := impl.ledger.GetRoom(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("[%s] Fail to resolve room, err=%w", op, err)
	}
	if !ok {
		return nil
	}

	status, err := impl.engine.BidStatus(ctx, auctionID, 0)
	if err != nil {
		return fmt.Errorf("[%s] Fail to read bid status, err=%w", op, err)
	}

	event := auction.RoomEvent{
		Type:                auction.EventBidStatusUpdate,
		AuctionID:           auctionID,
		AuctionStatus:       string(status.AuctionStatus),
		CurrentHighestPrice: status.CurrentHighest,
		BidList:             auction.MaskBids(status.Bids),
	}
	if len(event.BidList) > 0 {
		event.HighestBid = &event.BidList[0]
	}
	impl.broker.Broadcast(roomChannel(liveID), event)
	return nil
}

func (impl *ServerImpl) Close() {
	if err := impl.voidConsumer.Close(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Fail to close order-void consumer", slog.Any("error", err))
	}
	if impl.cancelFunc != nil {
		impl.cancelFunc()
	}
	impl.bidConsumer.Close()
	impl.eventConsumer.Close()
	impl.wg.Wait()
	impl.eventProducer.Close()
	impl.voidProducer.Close()
	impl.broker.Shutdown()
}
