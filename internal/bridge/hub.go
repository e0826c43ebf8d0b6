package bridge

import (
	"sync"
)

// EventType names a platform push event. Foreground transitions use the
// OS-specific app-state event name, "change" on iOS and "focus" on Android.
type EventType string

const (
	EventExposureRecordsUpdated EventType = "onExposureRecordUpdated"
	EventENStatusUpdated        EventType = "onEnabledStatusUpdated"
	EventBluetoothStatusUpdated EventType = "onBluetoothStatusUpdated"
	EventLocationStatusUpdated  EventType = "onLocationStatusUpdated"
	EventAppStateChange         EventType = "change"
	EventAppStateFocus          EventType = "focus"
)

// Event is one platform push. Payload shape depends on the type: a raw JSON
// array of exposure records, a RawENStatus tuple, or a boolean.
type Event struct {
	Type    EventType
	Payload interface{}
}

// Handler consumes one event. Handlers run on the publishing goroutine;
// slow work belongs elsewhere.
type Handler func(Event)

// Hub fans platform events out to subscribers. Delivery order across
// distinct event types is best-effort; subscribers must not assume
// interleaving. Subscriptions are torn down through their returned handle,
// and removal is idempotent.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventType]map[int]Handler
}

// NewHub creates an empty event hub.
func NewHub() *Hub {
	return &Hub{handlers: make(map[EventType]map[int]Handler)}
}

// Subscribe registers a handler for one event type and returns its
// disposable handle.
func (h *Hub) Subscribe(eventType EventType, handler Handler) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.handlers[eventType] == nil {
		h.handlers[eventType] = make(map[int]Handler)
	}
	h.handlers[eventType][id] = handler

	return &Subscription{hub: h, eventType: eventType, id: id}
}

// Publish delivers an event to all current subscribers of its type.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	subscribed := make([]Handler, 0, len(h.handlers[event.Type]))
	for _, handler := range h.handlers[event.Type] {
		subscribed = append(subscribed, handler)
	}
	h.mu.RUnlock()

	for _, handler := range subscribed {
		handler(event)
	}
}

// ListenerCount returns the number of live subscriptions for an event type.
func (h *Hub) ListenerCount(eventType EventType) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[eventType])
}

func (h *Hub) remove(eventType EventType, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers[eventType], id)
}

// Subscription is the disposable handle for one registered handler.
type Subscription struct {
	hub       *Hub
	eventType EventType
	id        int
	once      sync.Once
}

// Remove unregisters the handler. Safe to call more than once.
func (s *Subscription) Remove() {
	s.once.Do(func() {
		s.hub.remove(s.eventType, s.id)
	})
}
