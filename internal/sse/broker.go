// Package sse streams pipeline events to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/skilltally/internal/models"
)

// Event types.
const (
	EventNotesChanged  = "notes.changed"
	EventScanCompleted = "scan.completed"
	EventChartUpdated  = "chart.updated"
)

// Event is one message broadcast to every client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ScanSummary is the payload of a scan.completed event.
type ScanSummary struct {
	ID         int64               `json:"id,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
	Counted    int                 `json:"counted"`
	Filtered   int                 `json:"filtered"`
	Marked     int                 `json:"marked"`
	Increments int                 `json:"increments"`
	Top        []models.SkillCount `json:"top"`
}

// Broker fans events out to connected clients.
//
// A single goroutine owns the client set and the chart throttle; the
// public methods talk to it over channels.
type Broker struct {
	chartMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	runCh         chan models.Run
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits chart.updated at most once per
// chartThrottle.
func NewBroker(chartThrottle time.Duration) *Broker {
	if chartThrottle <= 0 {
		chartThrottle = 2 * time.Second
	}

	b := &Broker{
		chartMin:      chartThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		runCh:         make(chan models.Run, 64),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastChart time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client: drop rather than block the loop.
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

		case run := <-b.runCh:
			broadcast(Event{Type: EventScanCompleted, Data: summarize(run)})
			if run.Increments == 0 {
				continue
			}
			if now := time.Now(); now.Sub(lastChart) >= b.chartMin {
				lastChart = now
				broadcast(Event{Type: EventChartUpdated, Data: map[string]int{"increments": run.Increments}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func summarize(run models.Run) ScanSummary {
	top := run.Top
	if top == nil {
		top = []models.SkillCount{}
	}
	return ScanSummary{
		ID:         run.ID,
		FinishedAt: run.FinishedAt,
		Counted:    run.Counted,
		Filtered:   run.Filtered,
		Marked:     run.Marked,
		Increments: run.Increments,
		Top:        top,
	}
}

// Close stops the loop and closes all client channels.
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

// PublishChanges announces note files that changed on disk.
func (b *Broker) PublishChanges(paths []string) {
	b.Publish(Event{Type: EventNotesChanged, Data: map[string][]string{"paths": paths}})
}

// PublishRun broadcasts scan.completed for run, followed by a throttled
// chart.updated when the run added counts. Its signature matches
// tally.WithRunListener.
func (b *Broker) PublishRun(run models.Run) {
	if b.closed.Load() {
		return
	}
	select {
	case b.runCh <- run:
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
