package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestBroker(t *testing.T, cfg Config) *Broker {
	t.Helper()
	b := NewBroker(cfg)
	t.Cleanup(b.Close)
	return b
}

func recv(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
	return ""
}

// drain collects whatever is buffered after a short settle.
func drain(ch <-chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
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

func TestClientCount(t *testing.T) {
	b := newTestBroker(t, Config{})
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
	a, c := b.Subscribe(), b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(a)
	b.Unsubscribe(a)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d after unsubscribe, want 1", n)
	}
	b.Unsubscribe(c)
}

func TestReloadFrame(t *testing.T) {
	b := newTestBroker(t, Config{})
	ch := b.Subscribe()

	b.PublishReload(ReloadInfo{Version: "v1", Persons: 3, Edges: 4})

	got := recv(t, ch)
	want := "id: 1\nevent: graph.reloaded\ndata: {\"version\":\"v1\",\"persons\":3,\"edges\":4}\n\n"
	if got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestLateSubscriberGetsLastReload(t *testing.T) {
	b := newTestBroker(t, Config{})
	b.PublishReload(ReloadInfo{Version: "v1"})
	b.PublishReload(ReloadInfo{Version: "v2"})
	b.PublishChange(TypePersonCreated, 9)

	// Wait for the loop to process the queue before joining.
	early := b.Subscribe()
	drain(early)

	late := b.Subscribe()
	first := recv(t, late)
	if !strings.Contains(first, `"version":"v2"`) {
		t.Errorf("replayed frame = %q, want version v2", first)
	}
	if rest := drain(late); len(rest) != 0 {
		t.Errorf("late subscriber got extra frames %q", rest)
	}
}

func TestFrameIDsIncrease(t *testing.T) {
	b := newTestBroker(t, Config{StaleThrottle: time.Hour})
	ch := b.Subscribe()

	b.PublishChange(TypePersonCreated, 1)
	b.PublishChange(TypePersonDeleted, 1)

	frames := drain(ch)
	if len(frames) != 3 {
		t.Fatalf("frames = %q, want change, stale, change", frames)
	}
	for i, prefix := range []string{"id: 1\nevent: person.created", "id: 2\nevent: graph.stale", "id: 3\nevent: person.deleted"} {
		if !strings.HasPrefix(frames[i], prefix) {
			t.Errorf("frame %d = %q, want prefix %q", i, frames[i], prefix)
		}
	}
}

func TestStaleHintThrottled(t *testing.T) {
	b := newTestBroker(t, Config{StaleThrottle: 500 * time.Millisecond})
	ch := b.Subscribe()

	b.PublishChange(TypePersonCreated, 1)
	b.PublishChange(TypeConnectionCreated, 7)

	stale, changes := 0, 0
	for _, f := range drain(ch) {
		if strings.Contains(f, "event: "+TypeGraphStale) {
			stale++
		} else {
			changes++
		}
	}
	if changes != 2 {
		t.Errorf("change frames = %d, want 2", changes)
	}
	if stale != 1 {
		t.Errorf("stale frames = %d, want 1", stale)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := newTestBroker(t, Config{})
	_ = b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			b.Publish(Event{Type: "test", Data: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

// flushRecorder guards the recorder body; the handler writes from its own goroutine.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *flushRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *flushRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Body.String()
}

func TestServeHTTP(t *testing.T) {
	b := newTestBroker(t, Config{KeepAlive: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}

	b.PublishChange(TypePersonDeleted, 42)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.body()
	if !strings.Contains(body, "event: person.deleted\ndata: {\"id\":42}") {
		t.Errorf("body missing change frame: %q", body)
	}
	if !strings.Contains(body, ": keepalive") {
		t.Errorf("body missing keepalive: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after disconnect, want 0", n)
	}
}

func TestServeHTTPEndsOnClose(t *testing.T) {
	b := NewBroker(Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	b.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after Close")
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(Config{})
	ch := b.Subscribe()

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after close, want 0", n)
	}

	// No-ops after close.
	b.PublishReload(ReloadInfo{Version: "v2"})
	b.PublishChange(TypePersonCreated, 1)
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
}
