// Package sse implements a Server-Sent Events broker for gallery and map updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/photostore"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// PhotoData is the payload of photo.* events. Image bytes are never pushed;
// clients fetch them from the image endpoint.
type PhotoData struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Liked     bool           `json:"liked"`
	Coords    *models.Coords `json:"coords,omitempty"`
	Address   string         `json:"address,omitempty"`
}

type photoEventReq struct {
	kind  photostore.EventKind
	photo models.Photo
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + map throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	mapMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	photoEventCh  chan photoEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ photostore.Notifier = (*Broker)(nil)

// NewBroker creates a new SSE broker with the given map.updated throttle interval.
func NewBroker(mapThrottle time.Duration) *Broker {
	if mapThrottle <= 0 {
		mapThrottle = 2 * time.Second
	}

	b := &Broker{
		mapMin:        mapThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		photoEventCh:  make(chan photoEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastMap time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.photoEventCh:
			p := req.photo
			broadcast(Event{Type: "photo." + string(req.kind), Data: PhotoData{
				ID:        p.ID,
				CreatedAt: p.CreatedAt,
				Liked:     p.Liked,
				Coords:    p.Coords,
				Address:   p.Address,
			}})

			// only geotagged photos appear on the map
			if p.Coords == nil {
				continue
			}
			now := time.Now()
			if now.Sub(lastMap) >= b.mapMin {
				lastMap = now
				broadcast(Event{Type: "map.updated", Data: map[string]string{}})
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

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// PublishPhotoEvent publishes a photo change and, for geotagged photos, a
// throttled map.updated event.
func (b *Broker) PublishPhotoEvent(kind photostore.EventKind, p models.Photo) {
	if b.closed.Load() {
		return
	}
	select {
	case b.photoEventCh <- photoEventReq{kind: kind, photo: p}:
	case <-b.stopped:
	}
}

// Notify implements photostore.Notifier.
func (b *Broker) Notify(e photostore.Event) {
	b.PublishPhotoEvent(e.Kind, e.Photo)
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

	ch := b.Subscribe()
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
