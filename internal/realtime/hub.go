// Package realtime delivers room-scoped state changes to connected devices.
//
// Broadcast never blocks the caller. Events are queued and a single worker
// publishes them to the room channels; when the queue is full the event is
// dropped and counted. Clients reconcile from the next full-state event.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dinein-service/internal/models"
	"dinein-service/internal/util"

	"go.uber.org/zap"
)

// RoomPublisher delivers a serialized event to one room.
type RoomPublisher interface {
	PublishRoom(ctx context.Context, room string, payload []byte) error
}

func RestaurantRoom(id string) string { return "restaurant:" + id }
func SessionRoom(id string) string    { return "session:" + id }
func TableRoom(id string) string      { return "table:" + id }

const publishTimeout = 2 * time.Second

type Hub struct {
	publisher RoomPublisher
	queue     chan models.RoomEvent
	logger    *zap.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	started sync.Once
}

// NewHub creates a hub with a bounded queue of the given size
func NewHub(publisher RoomPublisher, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Hub{
		publisher: publisher,
		queue:     make(chan models.RoomEvent, queueSize),
		logger:    util.ComponentLogger("realtime"),
		done:      make(chan struct{}),
	}
}

// Broadcast queues an event for every given room
func (h *Hub) Broadcast(eventType string, data interface{}, rooms ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		util.RealtimeDroppedTotal.WithLabelValues("closed").Add(float64(len(rooms)))
		return
	}

	now := time.Now().UTC()
	for _, room := range rooms {
		ev := models.RoomEvent{Room: room, Type: eventType, Data: data, Timestamp: now}
		select {
		case h.queue <- ev:
		default:
			util.RealtimeDroppedTotal.WithLabelValues("queue_full").Inc()
			h.logger.Warn("Realtime queue full, dropping event",
				zap.String("room", room), zap.String("type", eventType))
		}
	}
}

// Start runs the delivery worker until Close is called. It is safe to call
// more than once; only the first call starts a worker.
func (h *Hub) Start() {
	h.started.Do(func() {
		go h.run()
	})
}

func (h *Hub) run() {
	defer close(h.done)
	for ev := range h.queue {
		h.deliver(ev)
	}
}

func (h *Hub) deliver(ev models.RoomEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		util.RealtimeDroppedTotal.WithLabelValues("encode").Inc()
		h.logger.Error("Failed to encode room event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := h.publisher.PublishRoom(ctx, ev.Room, payload); err != nil {
		util.RealtimeDroppedTotal.WithLabelValues("publish").Inc()
		h.logger.Warn("Failed to publish room event",
			zap.String("room", ev.Room), zap.String("type", ev.Type), zap.Error(err))
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	close(h.queue)
	h.mu.Unlock()

	h.Start()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
