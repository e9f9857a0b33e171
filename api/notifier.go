package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	redisAdapter "freshbid/adapters/redis"
	"freshbid/auction"
)

// StreamNotifier 以事件 stream 實作 auction.Notifier
// 流標通知會以 auctionFailedResult 信封送到賣家的個人頻道，
// 賣家連在哪個節點都收得到
type StreamNotifier struct {
	producer redisAdapter.IProducer[RoomPublish]
	logger   *slog.Logger
}

func NewStreamNotifier(producer redisAdapter.IProducer[RoomPublish], logger *slog.Logger) *StreamNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamNotifier{
		producer: producer,
		logger:   logger.With(slog.String("caller", "StreamNotifier")),
	}
}

func (n *StreamNotifier) NotifyAuctionFailed(ctx context.Context, sellerID, auctionID uuid.UUID, reason string) error {
	const op = "StreamNotifier.NotifyAuctionFailed"
	err := n.producer.Publish(RoomPublish{
		Channel: userChannel(sellerID),
		Event: auction.RoomEvent{
			Type:      auction.EventAuctionFailed,
			AuctionID: auctionID,
			Message:   reason,
		},
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to publish failure notice, err=%w", op, err)
	}
	n.logger.Info("Auction failure notified",
		slog.String("auctionID", auctionID.String()),
		slog.String("sellerID", sellerID.String()))
	return nil
}
