// Package sse implements a Server-Sent Events broker for live note updates.
//
// Every event carries a sequence id. The broker keeps the most recent events
// so a client reconnecting with Last-Event-ID receives what it missed.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/tgvault/internal/index"
)

// Event types.
const (
	EventNoteIngested = "note.ingested"
	EventNoteUpdated  = "note.updated"
	EventNoteDeleted  = "note.deleted"
)

// DefaultHeartbeat is the keep-alive comment interval.
const DefaultHeartbeat = 15 * time.Second

// BacklogSize is the number of past events kept for replay.
const BacklogSize = 64

const (
	clientBuffer = 64
	retryMillis  = 3000
)

var keepAlive = []byte(": keep-alive\n\n")

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// IngestedData is the payload of note.ingested.
type IngestedData struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
	Assets  int    `json:"assets"`
}

// PathData is the payload of note.updated and note.deleted.
type PathData struct {
	Path string `json:"path"`
}

type frame struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch     chan []byte
	after  uint64
	replay bool
}

// Broker fans events out to SSE clients. A single loop goroutine owns the
// client set and the backlog; public methods talk to it over channels.
type Broker struct {
	heartbeat time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends a keep-alive comment to every client
// each heartbeat interval.
func NewBroker(heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	b := &Broker{
		heartbeat:     heartbeat,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	var (
		clients = make(map[chan []byte]struct{})
		backlog = make([]frame, 0, BacklogSize)
		lastID  uint64
	)

	send := func(raw []byte) {
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
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

		case sub := <-b.subscribeCh:
			if sub.replay {
				for _, f := range backlog {
					if f.id > sub.after {
						sub.ch <- f.raw
					}
				}
			}
			clients[sub.ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			payload, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			lastID++
			f := frame{id: lastID, raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", lastID, event.Type, payload))}
			if len(backlog) == BacklogSize {
				backlog = append(backlog[:0], backlog[1:]...)
			}
			backlog = append(backlog, f)
			send(f.raw)

		case <-ticker.C:
			send(keepAlive)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client that receives events published from now on.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(subscription{})
}

// Resume adds a client and first replays buffered events with an id greater
// than lastID. Events older than the backlog are lost.
func (b *Broker) Resume(lastID uint64) chan []byte {
	return b.subscribe(subscription{after: lastID, replay: true})
}

func (b *Broker) subscribe(sub subscription) chan []byte {
	sub.ch = make(chan []byte, clientBuffer+BacklogSize)
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}

	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}
	return sub.ch
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

// PublishIngested announces a note written from a chat message.
func (b *Broker) PublishIngested(data IngestedData) {
	b.Publish(Event{Type: EventNoteIngested, Data: data})
}

// PublishNoteEvent maps an index change kind onto note.updated or
// note.deleted. Unknown kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, path string) {
	switch kind {
	case index.ChangeCreated, index.ChangeUpdated:
		b.Publish(Event{Type: EventNoteUpdated, Data: PathData{Path: path}})
	case index.ChangeDeleted:
		b.Publish(Event{Type: EventNoteDeleted, Data: PathData{Path: path}})
	}
}

// lastEventID reads the resume point from the Last-Event-ID header or, for
// clients that cannot set headers, the lastEventId query parameter.
func lastEventID(r *http.Request) (uint64, bool) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
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
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	var ch chan []byte
	if id, ok := lastEventID(r); ok {
		ch = b.Resume(id)
	} else {
		ch = b.Subscribe()
	}
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
