package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"auction-engine/internal/notify"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// EventSource hands out live subscriptions to notification topics
type EventSource interface {
	Subscribe(ctx context.Context, topic string) <-chan notify.Event
}

// EventsHandler streams notification topics as Server-Sent Events
type EventsHandler struct {
	source EventSource
}

func NewEventsHandler(source EventSource) *EventsHandler {
	return &EventsHandler{source: source}
}

// AllAuctionsHandler handles GET /events/auctions
func (h *EventsHandler) AllAuctionsHandler(c *gin.Context) {
	h.stream(c, notify.GlobalTopic)
}

// AuctionHandler handles GET /events/auctions/:id
func (h *EventsHandler) AuctionHandler(c *gin.Context) {
	h.stream(c, notify.AuctionTopic(c.Param("id")))
}

// UserHandler handles GET /events/user
func (h *EventsHandler) UserHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "EventsUserHandler")
	if !ok {
		return
	}
	h.stream(c, notify.UserQueue(caller.UserID))
}

func (h *EventsHandler) stream(c *gin.Context, topic string) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events := h.source.Subscribe(ctx, topic)
	utils.Debug("event stream opened", map[string]any{"topic": topic})

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	w.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		w.Flush()
	}
	utils.Debug("event stream closed", map[string]any{"topic": topic})
}
