package notify

//go:generate mockgen -destination=mock_publisher.go -package=notify auction-engine/internal/notify Publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/metrics"
)

// GlobalTopic receives events for every auction
const GlobalTopic = "/topic/auctions"

// AuctionTopic is the topic carrying events of a single auction
func AuctionTopic(auctionID string) string {
	return "/topic/auction/" + auctionID
}

// UserQueue is the private channel of a single user
func UserQueue(userID string) string {
	return "/user/" + userID + "/queue/notifications"
}

// Publisher is the best-effort push channel used by the bidding engine
type Publisher interface {
	Publish(topic string, payload any) error
	PublishToUser(userID string, payload any) error
}

// Event is a payload delivered on a topic
type Event struct {
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

// Hub fans events out to in-process subscribers. Slow subscribers lose events rather than
// block publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	next   int
	buffer int
	closed bool
	done   chan struct{}
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub whose subscriber channels hold up to buffer pending events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[int]chan Event),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

// Subscribe registers a subscriber on topic. The channel is closed when ctx ends or the hub
// is closed.
func (h *Hub) Subscribe(ctx context.Context, topic string) <-chan Event {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	id := h.next
	h.next++
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]chan Event)
	}
	h.subs[topic][id] = ch
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		// Close already released the channel
		if _, ok := h.subs[topic][id]; !ok {
			return
		}
		delete(h.subs[topic], id)
		if len(h.subs[topic]) == 0 {
			delete(h.subs, topic)
		}
		close(ch)
	}()

	return ch
}

// Close ends every subscription and rejects new ones. It is safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for topic, subs := range h.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subs, topic)
	}
}

// Subscribers returns the number of live subscribers on topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Publish encodes payload and delivers it to the current subscribers of topic
func (h *Hub) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("encode payload for %s: %w: %v", topic, biddingerrors.ErrNotificationFailure, err)
	}
	evt := Event{Topic: topic, Payload: data, PublishedAt: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[topic] {
		select {
		case ch <- evt:
			metrics.NotificationsTotal.WithLabelValues("published").Inc()
		default:
			metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		}
	}
	return nil
}

// PublishToUser delivers payload on the user's private queue
func (h *Hub) PublishToUser(userID string, payload any) error {
	return h.Publish(UserQueue(userID), payload)
}
