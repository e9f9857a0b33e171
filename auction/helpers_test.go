package auction

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"freshbid/models"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeLedger 是記憶體版的出價帳本，排序行為與Redis實作一致
type fakeLedger struct {
	mu     sync.Mutex
	bids   map[uuid.UUID][]BidRecord
	floors map[uuid.UUID]int64
	rooms  map[uuid.UUID]uuid.UUID

	appendErr error
	clearErr  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		bids:   make(map[uuid.UUID][]BidRecord),
		floors: make(map[uuid.UUID]int64),
		rooms:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (l *fakeLedger) AppendBid(ctx context.Context, record BidRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.bids[record.AuctionID] = append(l.bids[record.AuctionID], record)
	return nil
}

func (l *fakeLedger) TopBids(ctx context.Context, auctionID uuid.UUID, limit int64) ([]BidRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := append([]BidRecord(nil), l.bids[auctionID]...)
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

func (l *fakeLedger) CountBids(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.bids[auctionID])), nil
}

func (l *fakeLedger) ClearAuction(ctx context.Context, auctionID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.clearErr != nil {
		return l.clearErr
	}
	delete(l.bids, auctionID)
	delete(l.floors, auctionID)
	return nil
}

func (l *fakeLedger) SetFloor(ctx context.Context, auctionID uuid.UUID, price int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.floors[auctionID] = price
	return nil
}

func (l *fakeLedger) GetFloor(ctx context.Context, auctionID uuid.UUID) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	price, ok := l.floors[auctionID]
	return price, ok, nil
}

func (l *fakeLedger) SetRoom(ctx context.Context, auctionID, liveID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rooms[auctionID] = liveID
	return nil
}

func (l *fakeLedger) GetRoom(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	liveID, ok := l.rooms[auctionID]
	return liveID, ok, nil
}

func (l *fakeLedger) DeleteRoom(ctx context.Context, auctionID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rooms, auctionID)
	return nil
}

func (l *fakeLedger) ListRooms(ctx context.Context) (map[uuid.UUID]uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rooms := make(map[uuid.UUID]uuid.UUID, len(l.rooms))
	for auctionID, liveID := range l.rooms {
		rooms[auctionID] = liveID
	}
	return rooms, nil
}

// settleCall 記錄一次結算寫入的內容
type settleCall struct {
	awarded BidRecord
	bids    []BidRecord
}

// fakeStore 是記憶體版的永久儲存
type fakeStore struct {
	mu        sync.Mutex
	auctions  map[uuid.UUID]*models.Auction
	histories []*models.AuctionHistory
	settled   map[uuid.UUID]settleCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions: make(map[uuid.UUID]*models.Auction),
		settled:  make(map[uuid.UUID]settleCall),
	}
}

func (s *fakeStore) addAuction(auction *models.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[auction.ID] = auction
}

func (s *fakeStore) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *auction
	return &clone, nil
}

func (s *fakeStore) UpdateAuction(ctx context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.auctions[auction.ID]
	if !ok {
		return ErrNotFound
	}
	stored.StartPrice = auction.StartPrice
	stored.Amount = auction.Amount
	return nil
}

func (s *fakeStore) UpdateAuctionStatus(ctx context.Context, auctionID uuid.UUID, expected, next models.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auction, ok := s.auctions[auctionID]
	if !ok {
		return ErrNotFound
	}
	if auction.Status != expected {
		return ErrInvalidState
	}
	auction.Status = next
	return nil
}

func (s *fakeStore) SettleAuction(ctx context.Context, awarded BidRecord, bids []BidRecord) (*Award, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settled[awarded.AuctionID]; ok {
		return nil, ErrConflict
	}
	s.settled[awarded.AuctionID] = settleCall{awarded: awarded, bids: bids}

	awardRow := &models.AuctionHistory{
		ID:         uuid.New(),
		AuctionID:  awarded.AuctionID,
		BidderID:   awarded.BidderID,
		Action:     models.HistoryAwarded,
		Price:      awarded.Price,
		ActionTime: awarded.SubmittedAt,
	}
	s.histories = append(s.histories, awardRow)
	for _, bid := range bids {
		s.histories = append(s.histories, &models.AuctionHistory{
			ID:         uuid.New(),
			AuctionID:  bid.AuctionID,
			BidderID:   bid.BidderID,
			Action:     models.HistoryBid,
			Price:      bid.Price,
			ActionTime: bid.SubmittedAt,
		})
	}
	return &Award{
		AuctionID: awarded.AuctionID,
		HistoryID: awardRow.ID,
		BidderID:  awarded.BidderID,
		Price:     awarded.Price,
		AwardedAt: awarded.SubmittedAt,
	}, nil
}

func (s *fakeStore) NextBidHistory(ctx context.Context, auctionID uuid.UUID) (*models.AuctionHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.AuctionHistory
	for _, history := range s.histories {
		if history.AuctionID != auctionID || history.Action != models.HistoryBid {
			continue
		}
		if best == nil ||
			history.Price > best.Price ||
			(history.Price == best.Price && history.ActionTime.Before(best.ActionTime)) {
			best = history
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	clone := *best
	return &clone, nil
}

func (s *fakeStore) PromoteHistory(ctx context.Context, historyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, history := range s.histories {
		if history.ID == historyID {
			if history.Action != models.HistoryBid {
				return ErrInvalidState
			}
			history.Action = models.HistoryAwarded
			return nil
		}
	}
	return ErrNotFound
}

func (s *fakeStore) MarkHistoryPaid(ctx context.Context, historyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, history := range s.histories {
		if history.ID == historyID {
			if history.Action != models.HistoryAwarded {
				return ErrInvalidState
			}
			history.Action = models.HistoryPaid
			return nil
		}
	}
	return ErrNotFound
}

// fakeMutex 記錄鎖的取得與釋放次數
type fakeMutex struct {
	mu      sync.Mutex
	locks   int
	unlocks int
	lockErr error
}

func (m *fakeMutex) Lock(ctx context.Context) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	m.locks++
	return ctx, nil
}

func (m *fakeMutex) Unlock() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocks++
	return true, nil
}
