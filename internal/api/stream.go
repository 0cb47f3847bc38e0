package api

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"dinein-service/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxStreamRooms  = 8
	streamHeartbeat = 15 * time.Second
)

var roomPrefixes = []string{"session:", "table:", "restaurant:"}

// parseRooms splits a comma separated room list and rejects unknown room kinds.
func parseRooms(raw string) ([]string, error) {
	var rooms []string
	seen := make(map[string]bool)
	for _, r := range strings.Split(raw, ",") {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		if !validRoom(r) {
			return nil, apperr.Wrap(apperr.ErrInvalidInput, "unknown room %q", r)
		}
		seen[r] = true
		rooms = append(rooms, r)
	}
	if len(rooms) == 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "at least one room is required")
	}
	if len(rooms) > maxStreamRooms {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "at most %d rooms per stream", maxStreamRooms)
	}
	return rooms, nil
}

func validRoom(room string) bool {
	for _, p := range roomPrefixes {
		if strings.HasPrefix(room, p) && len(room) > len(p) {
			return true
		}
	}
	return false
}

// stream relays room events to the client as server-sent events. A "ready"
// event is sent once the subscription is live.
func (h *Handler) stream(c *gin.Context) {
	rooms, err := parseRooms(c.Query("rooms"))
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	sub, err := h.Rooms.SubscribeRooms(ctx, rooms...)
	if err != nil {
		h.fail(c, apperr.Upstream("subscribe rooms", err))
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"rooms": rooms})
	c.Writer.Flush()
	h.logger.Debug("Stream opened", zap.Strings("rooms", rooms))

	messages := sub.Channel()
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, open := <-messages:
			if !open {
				return false
			}
			c.SSEvent(eventName(msg.Payload), msg.Payload)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
	h.logger.Debug("Stream closed", zap.Strings("rooms", rooms))
}

// eventName extracts the room event type so clients can listen per type.
func eventName(payload string) string {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil || envelope.Type == "" {
		return "message"
	}
	return envelope.Type
}
