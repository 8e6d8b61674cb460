// Package sse streams graph change notifications to browsers over
// Server-Sent Events.
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
	TypeGraphReloaded     = "graph.reloaded"
	TypeGraphStale        = "graph.stale"
	TypePersonCreated     = "person.created"
	TypePersonDeleted     = "person.deleted"
	TypeConnectionCreated = "connection.created"
	TypeConnectionDeleted = "connection.deleted"
)

// Event is a typed payload delivered to every subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ReloadInfo is the payload of a graph.reloaded event.
type ReloadInfo struct {
	Version string `json:"version"`
	Persons int    `json:"persons"`
	Edges   int    `json:"edges"`
}

// Config tunes the broker.
type Config struct {
	// StaleThrottle bounds graph.stale hints to one per interval.
	StaleThrottle time.Duration
	// KeepAlive is the interval of comment frames sent to idle streams.
	// Zero disables them.
	KeepAlive time.Duration
}

const subscriberBuffer = 64

type change struct {
	eventType string
	id        int64
}

// Broker fans graph events out to SSE subscribers.
//
// One loop goroutine owns the subscriber set, the frame sequence, the last
// graph.reloaded frame and the stale throttle. Everything else reaches it
// through channels. New subscribers first receive the last reload frame so
// they learn the current snapshot version without waiting for the next one.
type Broker struct {
	cfg Config

	join    chan chan []byte
	leave   chan chan []byte
	events  chan Event
	changes chan change
	count   chan chan int

	quit    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
}

// NewBroker starts a broker loop.
func NewBroker(cfg Config) *Broker {
	if cfg.StaleThrottle <= 0 {
		cfg.StaleThrottle = 2 * time.Second
	}
	b := &Broker{
		cfg:     cfg,
		join:    make(chan chan []byte),
		leave:   make(chan chan []byte),
		events:  make(chan Event, 256),
		changes: make(chan change, 256),
		count:   make(chan chan int),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.done)

	subs := make(map[chan []byte]struct{})
	var (
		seq        uint64
		lastReload []byte
		lastStale  time.Time
	)

	send := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))
		if ev.Type == TypeGraphReloaded {
			lastReload = frame
		}
		for ch := range subs {
			select {
			case ch <- frame:
			default:
				// Subscriber is behind; it misses this frame.
			}
		}
	}

	for {
		select {
		case <-b.quit:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.join:
			subs[ch] = struct{}{}
			if lastReload != nil {
				ch <- lastReload
			}

		case ch := <-b.leave:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case ev := <-b.events:
			send(ev)

		case c := <-b.changes:
			send(Event{Type: c.eventType, Data: map[string]int64{"id": c.id}})
			// Writes bypass the cache, so searches are now behind the store.
			if now := time.Now(); now.Sub(lastStale) >= b.cfg.StaleThrottle {
				lastStale = now
				send(Event{Type: TypeGraphStale, Data: map[string]string{}})
			}

		case resp := <-b.count:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.stopped.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or
// Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	if b.stopped.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe removes ch and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.stopped.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Publish queues ev for every subscriber.
func (b *Broker) Publish(ev Event) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// PublishReload announces a newly published graph snapshot.
func (b *Broker) PublishReload(info ReloadInfo) {
	b.Publish(Event{Type: TypeGraphReloaded, Data: info})
}

// PublishChange announces a person or connection write identified by id,
// followed by a throttled graph.stale hint.
func (b *Broker) PublishChange(eventType string, id int64) {
	if b.stopped.Load() {
		return
	}
	select {
	case b.changes <- change{eventType: eventType, id: id}:
	case <-b.done:
	}
}

// ServeHTTP streams events to one client until it disconnects or the
// broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.cfg.KeepAlive > 0 {
		t := time.NewTicker(b.cfg.KeepAlive)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
