package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"freshbid/auction"
)

func TestGroupConsumerAck(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	_, client := setupMiniredis(t)
	ctx := context.Background()

	producer, err := NewProducer[auction.BidRecord](client, "group-stream")
	require.NoError(t, err)
	producer.Start()
	defer producer.Close()

	consumer, err := NewGroupConsumer[auction.BidRecord](
		client, "group-stream", "test-group", "node-1",
		WithGroupConsumerBlockTimeout[auction.BidRecord](50*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, consumer.Start())
	defer consumer.Close()

	record := auction.BidRecord{BidID: uuid.New(), Price: 4000}
	require.NoError(t, producer.Publish(record))

	select {
	case msg := <-consumer.Subscribe():
		assert.Equal(t, record.BidID, msg.Data.BidID)
		require.NoError(t, msg.Done(ctx))
		// 重複Done是no-op
		require.NoError(t, msg.Done(ctx))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	// ack後沒有pending訊息
	pending, err := client.XPending(ctx, "group-stream", "test-group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestGroupConsumerFailMovesToDeadLetter(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	_, client := setupMiniredis(t)
	ctx := context.Background()

	producer, err := NewProducer[auction.BidRecord](client, "group-stream")
	require.NoError(t, err)
	producer.Start()
	defer producer.Close()

	consumer, err := NewGroupConsumer[auction.BidRecord](
		client, "group-stream", "test-group", "node-1",
		WithGroupConsumerBlockTimeout[auction.BidRecord](50*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, consumer.Start())
	defer consumer.Close()

	require.NoError(t, producer.Publish(auction.BidRecord{BidID: uuid.New()}))

	select {
	case msg := <-consumer.Subscribe():
		require.NoError(t, msg.Fail(ctx, errors.New("boom")))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	// 訊息被移到dead-letter並帶上錯誤原因
	deadLetters, err := client.XRange(ctx, "group-stream:dead-letter", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, deadLetters, 1)
	assert.Equal(t, "boom", deadLetters[0].Values["error"])

	pending, err := client.XPending(ctx, "group-stream", "test-group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestGroupConsumerCompetingConsumers(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	_, client := setupMiniredis(t)
	ctx := context.Background()

	producer, err := NewProducer[auction.BidRecord](client, "group-stream")
	require.NoError(t, err)
	producer.Start()
	defer producer.Close()

	newNode := func(name string) IGroupConsumer[auction.BidRecord] {
		consumer, err := NewGroupConsumer[auction.BidRecord](
			client, "group-stream", "test-group", name,
			WithGroupConsumerBlockTimeout[auction.BidRecord](50*time.Millisecond),
		)
		require.NoError(t, err)
		require.NoError(t, consumer.Start())
		return consumer
	}
	nodeA := newNode("node-a")
	defer nodeA.Close()
	nodeB := newNode("node-b")
	defer nodeB.Close()

	const total = 10
	for i := range total {
		require.NoError(t, producer.Publish(auction.BidRecord{BidID: uuid.New(), Price: int64(i)}))
	}

	// 每條訊息恰好被一個節點拿到
	seen := make(map[uuid.UUID]bool)
	timeout := time.After(5 * time.Second)
	for len(seen) < total {
		select {
		case msg := <-nodeA.Subscribe():
			assert.False(t, seen[msg.Data.BidID])
			seen[msg.Data.BidID] = true
			require.NoError(t, msg.Done(ctx))
		case msg := <-nodeB.Subscribe():
			assert.False(t, seen[msg.Data.BidID])
			seen[msg.Data.BidID] = true
			require.NoError(t, msg.Done(ctx))
		case <-timeout:
			t.Fatalf("timed out, received %d of %d messages", len(seen), total)
		}
	}
}
