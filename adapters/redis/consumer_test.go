package redis

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"freshbid/auction"
)

func TestConsumerReceivesMessages(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	_, client := setupMiniredis(t)

	producer, err := NewProducer[auction.BidRecord](client, "test-stream")
	require.NoError(t, err)
	producer.Start()
	defer producer.Close()

	// 從頭開始讀，避免和producer的寫入時序賽跑
	consumer, err := NewConsumer[auction.BidRecord](
		client, "test-stream",
		WithConsumerStartID[auction.BidRecord]("0"),
		WithConsumerBlockTimeout[auction.BidRecord](50*time.Millisecond),
	)
	require.NoError(t, err)
	consumer.Start()
	defer consumer.Close()

	sent := []auction.BidRecord{
		{BidID: uuid.New(), Price: 1000},
		{BidID: uuid.New(), Price: 2000},
		{BidID: uuid.New(), Price: 3000},
	}
	for _, record := range sent {
		require.NoError(t, producer.Publish(record))
	}

	received := make([]auction.BidRecord, 0, len(sent))
	timeout := time.After(3 * time.Second)
	for len(received) < len(sent) {
		select {
		case record := <-consumer.Subscribe():
			received = append(received, record)
		case <-timeout:
			t.Fatalf("timed out, received %d of %d messages", len(received), len(sent))
		}
	}

	for i, record := range sent {
		assert.Equal(t, record.BidID, received[i].BidID)
		assert.Equal(t, record.Price, received[i].Price)
	}
}

func TestConsumerCloseIsIdempotent(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	_, client := setupMiniredis(t)

	consumer, err := NewConsumer[auction.BidRecord](
		client, "test-stream",
		WithConsumerBlockTimeout[auction.BidRecord](50*time.Millisecond),
	)
	require.NoError(t, err)

	consumer.Start()
	consumer.Close()
	consumer.Close()
}
