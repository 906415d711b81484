package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
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
	b := NewBroker(100*time.Millisecond, nil)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100*time.Millisecond, nil)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: RecipesImported, Data: map[string]int{"count": 3}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: recipes.imported") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"count":3`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestDocumentEventsScopedToOwner(t *testing.T) {
	b := NewBroker(time.Second, nil)
	defer b.Close()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")
	defer b.Unsubscribe(alice)
	defer b.Unsubscribe(bob)

	b.PublishDocumentEvent("shopping_lists", "alice", 4)
	b.PublishDocumentEvent("meal_plans", "alice", 5)
	time.Sleep(50 * time.Millisecond)

	got := drain(alice)
	if len(got) != 2 || !strings.Contains(got[0], "event: shopping_list.updated") || !strings.Contains(got[1], "event: meal_plan.updated") {
		t.Errorf("alice got %q", got)
	}
	if got := drain(bob); len(got) != 0 {
		t.Errorf("bob got %q", got)
	}
}

func TestPublishImport_InvalidateThrottle(t *testing.T) {
	b := NewBroker(500*time.Millisecond, nil)
	defer b.Close()
	ch := b.Subscribe("someone")
	defer b.Unsubscribe(ch)

	// First import should trigger items.invalidated, the second should not.
	b.PublishImport(2)
	b.PublishImport(1)
	b.PublishImport(0)

	time.Sleep(50 * time.Millisecond)
	invalidated, imported := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, ItemsInvalidated) {
			invalidated++
		} else {
			imported++
		}
	}

	if imported != 2 {
		t.Errorf("import events = %d, want 2", imported)
	}
	if invalidated != 1 {
		t.Errorf("invalidated events = %d, want 1 (throttled)", invalidated)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, func(r *http.Request) string { return r.Header.Get("X-User") })
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("X-User", "u1")
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

	b.PublishDocumentEvent("shopping_lists", "u1", 9)
	b.PublishDocumentEvent("shopping_lists", "u2", 10)
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: shopping_list.updated") || !strings.Contains(body, `"id":9`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, `"id":10`) {
		t.Errorf("handler leaked another user's event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second, nil)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestClosedBrokerIsInert(t *testing.T) {
	b := NewBroker(time.Second, nil)
	b.Close()
	b.PublishImport(1)
	b.PublishDocumentEvent("meal_plans", "u", 1)
	if _, ok := <-b.Subscribe("u"); ok {
		t.Error("subscribe after close should return a closed channel")
	}
	if b.ClientCount() != 0 {
		t.Error("closed broker reports clients")
	}
}
