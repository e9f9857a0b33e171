package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"freshbid/auction"
	"freshbid/models"
)

const claimsKey = "claims"

// RegisterRoutes 註冊所有路由
// /internal 路徑給底價排程器和訂單服務等內部協作者使用，由部署層隔離
func (impl *ServerImpl) RegisterRoutes(router *gin.Engine) {
	authorized := router.Group("/", impl.requireAuth())
	authorized.POST("/live", impl.PostLive)
	authorized.GET("/live/:liveID/events", impl.GetLiveEvents)
	authorized.PATCH("/live/:liveID/auctions/:auctionID", impl.PatchAuction)
	authorized.POST("/live/:liveID/auctions/:auctionID/start", impl.StartAuction)
	authorized.POST("/live/:liveID/auctions/:auctionID/stop", impl.StopAuction)
	authorized.POST("/live/:liveID/auctions/:auctionID/bids", impl.SubmitBid)

	internal := router.Group("/internal")
	internal.PUT("/auctions/:auctionID/floor", impl.PutFloor)
	internal.POST("/auctions/:auctionID/finalize", impl.PostFinalize)
	internal.GET("/auctions/active", impl.GetActiveAuctions)
	internal.POST("/broadcast", impl.PostBroadcastTick)
	internal.POST("/orders/void", impl.PostOrderVoid)
	internal.POST("/histories/:historyID/paid", impl.PostHistoryPaid)
}

// requireAuth 解析並驗證存取權杖，通過後把內容放進請求context
func (impl *ServerImpl) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie("access_token")
		if err != nil {
			header := c.GetHeader("Authorization")
			tokenString = strings.TrimPrefix(header, "Bearer ")
		}
		if tokenString == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := ParseAndValidateJWT(tokenString, impl.config.Auth.PrivateKey)
		if err != nil {
			slog.Error("Fail to parse and validate JWT", slog.Any("error", err))
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func requestClaims(c *gin.Context) *JWT {
	return c.MustGet(claimsKey).(*JWT)
}

// statusFromError 將domain錯誤分類對應到HTTP狀態碼
func statusFromError(err error) int {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auction.ErrInvalidState), errors.Is(err, auction.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ackError 以信封格式回覆操作失敗，內部錯誤不回傳細節
func ackError(c *gin.Context, eventType string, err error) {
	status := statusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", slog.String("type", eventType), slog.Any("error", err))
		message = "internal error"
	}
	c.JSON(status, auction.RoomEvent{
		Type:    eventType,
		Success: lo.ToPtr(false),
		Message: message,
	})
}

type registerAuctionBody struct {
	ProductID  uuid.UUID `json:"productId" binding:"required"`
	StartPrice int64     `json:"startPrice" binding:"required"`
	Amount     int32     `json:"amount" binding:"required"`
}

type registerLiveBody struct {
	Title       string                `json:"title" binding:"required"`
	Description string                `json:"description"`
	StartTime   time.Time             `json:"startTime" binding:"required"`
	Auctions    []registerAuctionBody `json:"auctions" binding:"required"`
}

// PostLive 登錄直播場次與場次中的拍賣
// (POST /live)
func (impl *ServerImpl) PostLive(c *gin.Context) {
	const op = "PostLive"
	claims := requestClaims(c)

	var body registerLiveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	for _, item := range body.Auctions {
		if item.StartPrice <= 0 || item.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "start price and amount must be positive"})
			return
		}
	}

	live := models.Live{
		SellerID:    uuid.MustParse(claims.Subject),
		Title:       impl.htmlChecker.Sanitize(body.Title),
		Description: impl.htmlChecker.Sanitize(body.Description),
		StartTime:   body.StartTime,
		Auctions: lo.Map(body.Auctions, func(item registerAuctionBody, _ int) models.Auction {
			return models.Auction{
				ProductID:  item.ProductID,
				StartPrice: item.StartPrice,
				Amount:     item.Amount,
				Status:     models.AuctionScheduled,
			}
		}),
	}
	if result := impl.db.WithContext(c.Request.Context()).Create(&live); result.Error != nil {
		slog.Error("Fail to create live session", slog.String("op", op), slog.Any("error", result.Error))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}
	c.Header("Location", live.ID.String())
	c.JSON(http.StatusCreated, gin.H{
		"liveId": live.ID,
		"auctionIds": lo.Map(live.Auctions, func(item models.Auction, _ int) uuid.UUID {
			return item.ID
		}),
	})
}

type updateAuctionBody struct {
	StartPrice int64 `json:"startPrice" binding:"required"`
	Amount     int32 `json:"amount" binding:"required"`
}

// PatchAuction 更新尚未開始且沒有任何出價的拍賣
// (PATCH /live/{liveID}/auctions/{auctionID})
func (impl *ServerImpl) PatchAuction(c *gin.Context) {
	claims := requestClaims(c)
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return
	}
	var body updateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	err = impl.lifecycle.UpdatePreBid(c.Request.Context(), auctionID, uuid.MustParse(claims.Subject), body.StartPrice, body.Amount)
	if err != nil {
		ackError(c, "updateAuctionResult", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartAuction 開始競標
// (POST /live/{liveID}/auctions/{auctionID}/start)
func (impl *ServerImpl) StartAuction(c *gin.Context) {
	const op = "StartAuction"
	claims := requestClaims(c)
	liveID, err := uuid.Parse(c.Param("liveID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid live id"})
		return
	}
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return
	}

	if err := impl.lifecycle.Start(c.Request.Context(), auctionID, uuid.MustParse(claims.Subject)); err != nil {
		ackError(c, auction.EventStartAuction, err)
		return
	}

	// 向房間所有人廣播競標開始
	err = impl.eventProducer.Publish(RoomPublish{
		Channel: roomChannel(liveID),
		Event: auction.RoomEvent{
			Type:          auction.EventStartAuction,
			Success:       lo.ToPtr(true),
			AuctionID:     auctionID,
			AuctionStatus: string(models.AuctionInProgress),
		},
	})
	if err != nil {
		slog.Error("Fail to publish start event", slog.String("op", op), slog.Any("error", err))
	}

	c.JSON(http.StatusOK, auction.RoomEvent{
		Type:          auction.EventStartAuction,
		Success:       lo.ToPtr(true),
		AuctionID:     auctionID,
		AuctionStatus: string(models.AuctionInProgress),
	})
}

// StopAuction 結束競標並立即結算
// (POST /live/{liveID}/auctions/{auctionID}/stop)
func (impl *ServerImpl) StopAuction(c *gin.Context) {
	const op = "StopAuction"
	claims := requestClaims(c)
	actorID := uuid.MustParse(claims.Subject)
	liveID, err := uuid.Parse(c.Param("liveID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid live id"})
		return
	}
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return
	}

	if err := impl.lifecycle.End(c.Request.Context(), auctionID, actorID); err != nil {
		ackError(c, auction.EventStopAuction, err)
		return
	}

	award, err := impl.settlement.Finalize(c.Request.Context(), auctionID)
	if err != nil {
		ackError(c, auction.EventStopAuction, err)
		return
	}

	// 向房間所有人廣播競標結束
	publishErr := impl.eventProducer.Publish(RoomPublish{
		Channel: roomChannel(liveID),
		Event: auction.RoomEvent{
			Type:          auction.EventStopAuction,
			Success:       lo.ToPtr(true),
			AuctionID:     auctionID,
			AuctionStatus: string(models.AuctionEnded),
		},
	})
	if publishErr != nil {
		slog.Error("Fail to publish stop event", slog.String("op", op), slog.Any("error", publishErr))
	}

	if award == nil {
		// 流標，通知賣家
		if err := impl.notifier.NotifyAuctionFailed(c.Request.Context(), actorID, auctionID, "auction ended without bids"); err != nil {
			slog.Error("Fail to notify auction failure", slog.String("op", op), slog.Any("error", err))
		}
		c.JSON(http.StatusOK, auction.RoomEvent{
			Type:          auction.EventStopAuction,
			Success:       lo.ToPtr(true),
			AuctionID:     auctionID,
			AuctionStatus: string(models.AuctionEnded),
			Message:       "auction ended without bids",
		})
		return
	}

	// 向得標者發出得標通知並回送給主持人
	if err := impl.publishWinningBid(award.BidderID, actorID, auctionID, award.Price); err != nil {
		slog.Error("Fail to publish winning bid result", slog.String("op", op), slog.Any("error", err))
	}

	c.JSON(http.StatusOK, auction.RoomEvent{
		Type:          auction.EventStopAuction,
		Success:       lo.ToPtr(true),
		AuctionID:     auctionID,
		AuctionStatus: string(models.AuctionEnded),
	})
}

type submitBidBody struct {
	BidPrice int64 `json:"bidPrice" binding:"required"`
}

// SubmitBid 出價
// (POST /live/{liveID}/auctions/{auctionID}/bids)
func (impl *ServerImpl) SubmitBid(c *gin.Context) {
	const op = "SubmitBid"
	claims := requestClaims(c)
	bidderID := uuid.MustParse(claims.Subject)
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return
	}
	var body submitBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	// 主持人不能對自己的拍賣出價
	theAuction, err := impl.store.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		ackError(c, auction.EventSubmitBidResult, err)
		return
	}
	if theAuction.Live != nil && theAuction.Live.SellerID == bidderID {
		ackError(c, auction.EventSubmitBidResult, fmt.Errorf("host cannot bid on own auction: %w", auction.ErrForbidden))
		return
	}

	record, err := impl.engine.SubmitBid(c.Request.Context(), auctionID, bidderID, claims.Nickname, body.BidPrice)
	if err != nil {
		ackError(c, auction.EventSubmitBidResult, err)
		return
	}

	// 直接回覆給出價者本人的ack不經過遮罩；房間廣播由出價stream觸發
	c.JSON(http.StatusOK, auction.RoomEvent{
		Type:      auction.EventSubmitBidResult,
		Success:   lo.ToPtr(true),
		AuctionID: auctionID,
		BidPrice:  record.Price,
		UserID:    bidderID,
	})
}

// GetLiveEvents 訂閱直播房間的即時訊息
// 同時訂閱房間頻道與個人頻道，得標通知只會出現在個人頻道
// (GET /live/{liveID}/events)
func (impl *ServerImpl) GetLiveEvents(c *gin.Context) {
	const op = "GetLiveEvents"
	claims := requestClaims(c)
	userID := uuid.MustParse(claims.Subject)
	liveID, err := uuid.Parse(c.Param("liveID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid live id"})
		return
	}

	live := models.Live{ID: liveID}
	if result := impl.db.WithContext(c.Request.Context()).First(&live); result.Error != nil {
		c.Status(http.StatusNotFound)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")

	roomCh, err := impl.broker.Subscribe(roomChannel(liveID))
	if err != nil {
		slog.Error("Fail to subscribe room channel", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer impl.broker.Unsubscribe(roomChannel(liveID), roomCh)
	userCh, err := impl.broker.Subscribe(userChannel(userID))
	if err != nil {
		slog.Error("Fail to subscribe user channel", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer impl.broker.Unsubscribe(userChannel(userID), userCh)

	for {
		select {
		case <-w.CloseNotify():
			return
		case event, ok := <-roomCh:
			if !ok {
				return
			}
			c.SSEvent(event.Type, event)
			w.Flush()
		case event, ok := <-userCh:
			if !ok {
				return
			}
			c.SSEvent(event.Type, event)
			w.Flush()
		// 30秒沒有事件就發送一個空行，確保瀏覽器和Cloudflare不會斷開連線
		case <-time.After(30 * time.Second):
			w.WriteString("\n\n")
			w.Flush()
		}
	}
}

// PostFinalize 補救結算一場已結束的拍賣
// StopAuction 在狀態轉為 ENDED 後若結算失敗，重送 stop 會卡在狀態檢查，
// 由這個端點直接重跑結算；帳本已空（已結算完成或本來就沒有出價）時不重發通知
// (POST /internal/auctions/{auctionID}/finalize)
func (impl *ServerImpl) PostFinalize(c *gin.Context) {
	const op = "PostFinalize"
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return
	}

	theAuction, err := impl.store.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		ackError(c, "finalizeAuctionResult", err)
		return
	}
	if theAuction.Status != models.AuctionEnded {
		ackError(c, "finalizeAuctionResult", fmt.Errorf("auction %s is not ended: %w", auctionID, auction.ErrInvalidState))
		return
	}

	award, err := impl.settlement.Finalize(c.Request.Context(), auctionID)
	if err != nil {
		ackError(c, "finalizeAuctionResult", err)
		return
	}
	if award == nil {
		c.JSON(http.StatusOK, gin.H{"settled": false})
		return
	}

	if theAuction.Live != nil {
		if err := impl.publishWinningBid(award.BidderID, theAuction.Live.SellerID, auctionID, award.Price); err != nil {
			slog.Error("Fail to publish winning bid result", slog.String("op", op), slog.Any("error", err))
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"settled":   true,
		"historyId": award.HistoryID,
		"bidderId":  award.BidderID,
		"price":     award.Price,
	})
}

type putFloorBody struct {
	FloorPrice int64 `json:"floorPrice" binding:"required"`
}

// PutFloor 發布目前的競標底價，由外部排程器呼叫
// (PUT /internal/auctions/{auctionID}/floor)
func (impl *ServerImpl) PutFloor(c *gin.Context) {
	const op = "PutFloor"
	auctionID, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid auction id"})
		return
	}
	var body putFloorBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if body.FloorPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "floor price must be positive"})
		return
	}

	if err := impl.ledger.SetFloor(c.Request.Context(), auctionID, body.FloorPrice); err != nil {
		slog.Error("Fail to set floor", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetActiveAuctions 列出所有進行中的拍賣與其房間，供排程器使用
// (GET /internal/auctions/active)
func (impl *ServerImpl) GetActiveAuctions(c *gin.Context) {
	const op = "GetActiveAuctions"
	rooms, err := impl.ledger.ListRooms(c.Request.Context())
	if err != nil {
		slog.Error("Fail to list active auctions", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	output := make(map[string]string, len(rooms))
	for auctionID, liveID := range rooms {
		output[auctionID.String()] = liveID.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(output),
		"auctions": output,
	})
}

// PostBroadcastTick 對所有進行中的拍賣推送一次排行榜
// 透過事件stream發布，確保所有節點的訂閱者都收到
// (POST /internal/broadcast)
func (impl *ServerImpl) PostBroadcastTick(c *gin.Context) {
	const op = "PostBroadcastTick"
	rooms, err := impl.ledger.ListRooms(c.Request.Context())
	if err != nil {
		slog.Error("Fail to list active auctions", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	published := 0
	for auctionID, liveID := range rooms {
		status, err := impl.engine.BidStatus(c.Request.Context(), auctionID, 0)
		if err != nil {
			slog.Warn("Skip auction in broadcast tick",
				slog.String("op", op),
				slog.String("auctionID", auctionID.String()),
				slog.Any("error", err))
			continue
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
		if err := impl.eventProducer.Publish(RoomPublish{Channel: roomChannel(liveID), Event: event}); err != nil {
			slog.Warn("Fail to publish status update",
				slog.String("op", op),
				slog.String("auctionID", auctionID.String()),
				slog.Any("error", err))
			continue
		}
		published++
	}
	c.JSON(http.StatusOK, gin.H{"published": published})
}

// PostOrderVoid 接收訂單作廢通知並排入遞補佇列
// (POST /internal/orders/void)
func (impl *ServerImpl) PostOrderVoid(c *gin.Context) {
	const op = "PostOrderVoid"
	var body OrderVoid
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if body.OrderID == uuid.Nil || body.AuctionID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "orderId and auctionId are required"})
		return
	}

	if err := impl.voidProducer.Publish(body); err != nil {
		slog.Error("Fail to publish order void", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}
	c.Status(http.StatusAccepted)
}

// PostHistoryPaid 在訂單付款後將得標紀錄轉為 PAID，由訂單服務呼叫
// (POST /internal/histories/{historyID}/paid)
func (impl *ServerImpl) PostHistoryPaid(c *gin.Context) {
	historyID, err := uuid.Parse(c.Param("historyID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid history id"})
		return
	}
	if err := impl.store.MarkHistoryPaid(c.Request.Context(), historyID); err != nil {
		ackError(c, "markHistoryPaidResult", err)
		return
	}
	c.Status(http.StatusNoContent)
}
