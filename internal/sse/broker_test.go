package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/tgvault/internal/index"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Hour)
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
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: EventNoteDeleted, Data: map[string]string{"path": "a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.deleted") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishNoteEvent_Mapping(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent(index.ChangeCreated, "a.md")
	b.PublishNoteEvent(index.ChangeUpdated, "b.md")
	b.PublishNoteEvent(index.ChangeDeleted, "c.md")
	b.PublishNoteEvent("bogus", "d.md")

	want := []string{
		"event: note.updated\ndata: {\"path\":\"a.md\"}",
		"event: note.updated\ndata: {\"path\":\"b.md\"}",
		"event: note.deleted\ndata: {\"path\":\"c.md\"}",
	}
	for _, w := range want {
		select {
		case msg := <-ch:
			if !strings.Contains(string(msg), w) {
				t.Errorf("got %q, want %q", msg, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", w)
		}
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected event %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishIngested(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishIngested(IngestedData{Path: "n.md", Title: "Hi", Channel: "News", Assets: 2})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\nevent: note.ingested\n") {
			t.Errorf("event line missing in %q", s)
		}
		if !strings.Contains(s, `"path":"n.md"`) || !strings.Contains(s, `"assets":2`) {
			t.Errorf("payload missing fields in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHeartbeat(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case msg := <-ch:
		if string(msg) != ": keep-alive\n\n" {
			t.Errorf("heartbeat = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
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

	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "x.md"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: 3000\n\n") {
		t.Errorf("missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// More events than the client buffer holds must not block the loop.
	for i := 0; i < 2*(clientBuffer+BacklogSize); i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(time.Hour)
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
	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "x.md"}})
	b.PublishNoteEvent("updated", "x.md")
}

func recv(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestResumeReplaysMissedEvents(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	// A live subscriber guarantees all three events went through the loop.
	live := b.Subscribe()
	defer b.Unsubscribe(live)
	for _, p := range []string{"a.md", "b.md", "c.md"} {
		b.PublishNoteEvent(index.ChangeUpdated, p)
		recv(t, live)
	}

	ch := b.Resume(1)
	defer b.Unsubscribe(ch)

	if got := recv(t, ch); !strings.HasPrefix(got, "id: 2\n") || !strings.Contains(got, "b.md") {
		t.Errorf("first replay = %q", got)
	}
	if got := recv(t, ch); !strings.HasPrefix(got, "id: 3\n") || !strings.Contains(got, "c.md") {
		t.Errorf("second replay = %q", got)
	}

	b.PublishNoteEvent(index.ChangeDeleted, "d.md")
	if got := recv(t, ch); !strings.HasPrefix(got, "id: 4\nevent: note.deleted") {
		t.Errorf("live event after replay = %q", got)
	}
}

func TestSubscribeDoesNotReplay(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	live := b.Subscribe()
	b.PublishNoteEvent(index.ChangeUpdated, "a.md")
	recv(t, live)
	b.Unsubscribe(live)

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	select {
	case msg := <-ch:
		t.Errorf("unexpected replay %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBacklogIsBounded(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	live := b.Subscribe()
	for i := 0; i < BacklogSize+10; i++ {
		b.PublishNoteEvent(index.ChangeUpdated, "x.md")
		recv(t, live)
	}
	b.Unsubscribe(live)

	ch := b.Resume(0)
	defer b.Unsubscribe(ch)
	if got := recv(t, ch); !strings.HasPrefix(got, "id: 11\n") {
		t.Errorf("oldest kept event = %q, want id 11", got)
	}
}

func TestLastEventID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	if _, ok := lastEventID(req); ok {
		t.Error("no header should mean no resume")
	}
	req.Header.Set("Last-Event-ID", "42")
	if id, ok := lastEventID(req); !ok || id != 42 {
		t.Errorf("header id = %d %v", id, ok)
	}
	req = httptest.NewRequest(http.MethodGet, "/events?lastEventId=7", nil)
	if id, ok := lastEventID(req); !ok || id != 7 {
		t.Errorf("query id = %d %v", id, ok)
	}
	req = httptest.NewRequest(http.MethodGet, "/events?lastEventId=x", nil)
	if _, ok := lastEventID(req); ok {
		t.Error("garbage id should be ignored")
	}
}
