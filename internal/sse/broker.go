// Package sse implements a Server-Sent Events broker for document and catalog changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	ShoppingListUpdated = "shopping_list.updated"
	MealPlanUpdated     = "meal_plan.updated"
	RecipesImported     = "recipes.imported"
	ItemsInvalidated    = "items.invalidated"
)

// Event represents an SSE event to broadcast. A non-empty UserID limits
// delivery to that user's streams.
type Event struct {
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
	UserID string      `json:"-"`
}

type changeReq struct {
	table  string
	userID string
	id     int64
	count  int
}

type client struct {
	ch     chan []byte
	userID string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + invalidation throttle timestamp). Public methods communicate with this
// loop through channels, so no mutexes are required.
type Broker struct {
	invalidateMin time.Duration
	userOf        func(*http.Request) string

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given items.invalidated throttle
// interval. userOf (may be nil) names the user of an incoming stream request.
func NewBroker(invalidateThrottle time.Duration, userOf func(*http.Request) string) *Broker {
	if invalidateThrottle <= 0 {
		invalidateThrottle = 2 * time.Second
	}

	b := &Broker{
		invalidateMin: invalidateThrottle,
		userOf:        userOf,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var lastInvalidate time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, user := range clients {
			if event.UserID != "" && event.UserID != user {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c.userID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.changeCh:
			switch req.table {
			case "shopping_lists":
				broadcast(Event{Type: ShoppingListUpdated, UserID: req.userID, Data: map[string]interface{}{"id": req.id}})
			case "meal_plans":
				broadcast(Event{Type: MealPlanUpdated, UserID: req.userID, Data: map[string]interface{}{"id": req.id}})
			case "recipes":
				broadcast(Event{Type: RecipesImported, Data: map[string]interface{}{"count": req.count}})
				now := time.Now()
				if now.Sub(lastInvalidate) >= b.invalidateMin {
					lastInvalidate = now
					broadcast(Event{Type: ItemsInvalidated, Data: map[string]string{"kind": "recipe"}})
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client for userID ("" receives only unscoped events)
// and returns its channel.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{ch: ch, userID: userID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishDocumentEvent announces a persisted meal plan or shopping list to its owner.
func (b *Broker) PublishDocumentEvent(table, userID string, id int64) {
	b.change(changeReq{table: table, userID: userID, id: id})
}

// PublishImport announces imported recipes and a throttled items.invalidated event.
func (b *Broker) PublishImport(count int) {
	if count <= 0 {
		return
	}
	b.change(changeReq{table: "recipes", count: count})
}

func (b *Broker) change(req changeReq) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- req:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var userID string
	if b.userOf != nil {
		userID = b.userOf(r)
	}
	ch := b.Subscribe(userID)
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
