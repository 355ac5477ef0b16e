package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kfsoftware/agritrace/pkg/metrics"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	log "github.com/sirupsen/logrus"
)

const (
	EventConnected = "connected"
	EventNewBlock  = "new_block"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Subscription struct {
	ID     string
	Events <-chan Event
	events chan Event
}

// Hub fans monitor snapshots out to every subscriber. Delivery never blocks:
// an event that does not fit a subscriber's buffer is dropped for that
// subscriber only.
type Hub struct {
	buffer int

	mu          sync.RWMutex
	subscribers map[string]*Subscription
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		buffer:      buffer,
		subscribers: map[string]*Subscription{},
	}
}

func (h *Hub) Subscribe() *Subscription {
	events := make(chan Event, h.buffer)
	sub := &Subscription{
		ID:     uuid.New().String(),
		Events: events,
		events: events,
	}
	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	count := len(h.subscribers)
	h.mu.Unlock()
	metrics.Subscribers.Set(float64(count))
	log.WithField("subscriber", sub.ID).Debugf("Subscriber connected")
	return sub
}

// Unsubscribe closes the subscription channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
		close(sub.events)
	}
	count := len(h.subscribers)
	h.mu.Unlock()
	if ok {
		metrics.Subscribers.Set(float64(count))
		log.WithField("subscriber", id).Debugf("Subscriber disconnected")
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish implements monitor.Publisher.
func (h *Hub) Publish(snap monitor.Snapshot) {
	h.Broadcast(Event{Type: EventNewBlock, Data: snap})
}

func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subscribers {
		select {
		case sub.events <- event:
		default:
			metrics.Dropped.Inc()
			log.WithField("subscriber", id).Warnf("Subscriber buffer full, dropping %s event", event.Type)
		}
	}
}
