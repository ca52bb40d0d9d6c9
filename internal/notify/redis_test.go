package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

// setupTestRedis starts miniredis and a client connected to it
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

type chanEmitter chan models.TicketEvent

func (c chanEmitter) Emit(event models.TicketEvent) { c <- event }

func TestBridgeDeliversAcrossInstances(t *testing.T) {
	client, mr := setupTestRedis(t)
	publisher := NewBridge(client, logger.NewNopLogger())
	listener := NewBridge(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger.NewNopLogger())
	defer listener.Client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chanEmitter, 4)
	done := make(chan error, 1)
	go func() { done <- listener.Listen(ctx, received) }()

	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 1 }, time.Second, 5*time.Millisecond)

	event := models.NewTicketEvent(models.EventTicketsReserved, "r1", "ana", []string{"005"})
	require.NoError(t, publisher.PublishTicketEvent(ctx, event))

	select {
	case got := <-received:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, "r1", got.RaffleID)
		assert.Equal(t, []string{"005"}, got.Numbers)
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "raffle:abc:tickets", Channel("abc"))
	assert.Equal(t, "abc", raffleFromChannel(Channel("abc")))
}

type recordingPublisher struct {
	events []models.TicketEvent
	err    error
}

func (r *recordingPublisher) PublishTicketEvent(_ context.Context, event models.TicketEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func TestFanoutKeepsGoingAfterFailure(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("kafka down")}
	ok := &recordingPublisher{}

	err := Fanout{failing, ok}.PublishTicketEvent(context.Background(), models.NewTicketEvent(models.EventTicketsPaid, "r1", "ana", []string{"001"}))

	assert.ErrorContains(t, err, "kafka down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}

func TestLocalEmits(t *testing.T) {
	received := make(chanEmitter, 1)
	require.NoError(t, Local{Emitter: received}.PublishTicketEvent(context.Background(), models.TicketEvent{RaffleID: "r1"}))
	assert.Equal(t, "r1", (<-received).RaffleID)
}
