package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/photostore"
)

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "photo.created", Data: map[string]string{"id": "p1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: photo.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"p1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishPhotoEvent_MapThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	geo := &models.Coords{Lat: 1, Lng: 2}
	// First geotagged event should trigger map.updated.
	b.PublishPhotoEvent(photostore.EventCreated, models.Photo{ID: "a", Coords: geo})
	// Second event immediately should NOT trigger another map.updated.
	b.PublishPhotoEvent(photostore.EventUpdated, models.Photo{ID: "b", Coords: geo})

	time.Sleep(50 * time.Millisecond)
	mapCount := 0
	photoCount := 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "map.updated") {
			mapCount++
		} else {
			photoCount++
		}
	}

	if photoCount != 2 {
		t.Errorf("photo events = %d, want 2", photoCount)
	}
	if mapCount != 1 {
		t.Errorf("map events = %d, want 1 (throttled)", mapCount)
	}
}

func TestUntaggedPhotoSkipsMapUpdate(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(photostore.Event{Kind: photostore.EventDeleted, Photo: models.Photo{ID: "x", WebPath: "data:image/jpeg;base64,AAAA"}})
	time.Sleep(50 * time.Millisecond)

	msgs := drain(ch)
	if len(msgs) != 1 {
		t.Fatalf("messages = %q, want a single photo.deleted", msgs)
	}
	if !strings.Contains(msgs[0], "event: photo.deleted") || !strings.Contains(msgs[0], `"id":"x"`) {
		t.Errorf("unexpected message %q", msgs[0])
	}
	if strings.Contains(msgs[0], "base64") {
		t.Error("image bytes pushed over SSE")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "photo.updated", Data: map[string]string{"id": "x"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: photo.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "photo.updated", Data: map[string]string{"id": "x"}})
	b.PublishPhotoEvent(photostore.EventUpdated, models.Photo{ID: "x"})
}
