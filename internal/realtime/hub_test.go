package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dinein-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	rooms   []string
	events  []models.RoomEvent
	block   chan struct{}
	failing bool
}

func (p *recordingPublisher) PublishRoom(ctx context.Context, room string, payload []byte) error {
	if p.block != nil {
		<-p.block
	}
	if p.failing {
		return errors.New("redis down")
	}
	var ev models.RoomEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append(p.rooms, room)
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) snapshot() ([]string, []models.RoomEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.rooms...), append([]models.RoomEvent(nil), p.events...)
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "restaurant:r1", RestaurantRoom("r1"))
	assert.Equal(t, "session:s1", SessionRoom("s1"))
	assert.Equal(t, "table:t1", TableRoom("t1"))
}

func TestHub_DeliversToEveryRoom(t *testing.T) {
	pub := &recordingPublisher{}
	hub := NewHub(pub, 8)
	hub.Start()

	hub.Broadcast(models.RealtimeOrderStatusChanged, map[string]string{"orderId": "o1"},
		SessionRoom("s1"), RestaurantRoom("r1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))

	rooms, events := pub.snapshot()
	assert.Equal(t, []string{"session:s1", "restaurant:r1"}, rooms)
	require.Len(t, events, 2)
	assert.Equal(t, models.RealtimeOrderStatusChanged, events[0].Type)
	assert.Equal(t, "session:s1", events[0].Room)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	hub := NewHub(pub, 1)
	hub.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			hub.Broadcast(models.RealtimeCartUpdate, nil, SessionRoom("s1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a stalled publisher")
	}

	close(pub.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))

	_, events := pub.snapshot()
	assert.Less(t, len(events), 50, "overflowing events should be dropped")
}

func TestHub_PublishFailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{failing: true}
	hub := NewHub(pub, 4)
	hub.Start()

	hub.Broadcast(models.RealtimeCartUpdate, nil, SessionRoom("s1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Close(ctx))

	// Broadcasting after close is a no-op.
	hub.Broadcast(models.RealtimeCartUpdate, nil, SessionRoom("s1"))
}
