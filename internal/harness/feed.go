package harness

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/whatsapp-test-harness/internal/runlog"
	"github.com/wolfman30/whatsapp-test-harness/pkg/logging"
)

const (
	feedBuffer       = 64
	feedWriteTimeout = 5 * time.Second
)

// FeedEvent is one live event pushed to /events subscribers.
type FeedEvent struct {
	Type      string `json:"type"` // "phase", "sent", "failed", "received"
	Timestamp string `json:"timestamp,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Count     int    `json:"count,omitempty"`
	Message   string `json:"message,omitempty"`
	SID       string `json:"sid,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Feed streams run events to WebSocket subscribers while a run is in
// progress. Slow subscribers drop events rather than stall the run.
type Feed struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	subs   map[*feedSub]struct{}
	closed bool
}

type feedSub struct {
	conn *websocket.Conn
	send chan FeedEvent
	done chan struct{}
}

// NewFeed creates an empty feed.
func NewFeed(logger *logging.Logger) *Feed {
	if logger == nil {
		logger = logging.Default()
	}
	return &Feed{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[*feedSub]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the subscriber until it
// disconnects or the feed is closed.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("feed upgrade failed", "error", err)
		return
	}
	sub := &feedSub{
		conn: conn,
		send: make(chan FeedEvent, feedBuffer),
		done: make(chan struct{}),
	}
	if !f.add(sub) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "run finished"),
			time.Now().Add(feedWriteTimeout))
		conn.Close()
		return
	}
	f.logger.Debug("feed subscriber connected", "remote_ip", r.RemoteAddr)

	go f.writeLoop(sub)
	// Subscribers never send; reading only detects the disconnect.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	f.remove(sub)
}

// Subscribers reports the number of connected clients.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *Feed) add(sub *feedSub) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.subs[sub] = struct{}{}
	return true
}

func (f *Feed) remove(sub *feedSub) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	close(sub.done)
}

func (f *Feed) writeLoop(sub *feedSub) {
	defer sub.conn.Close()
	for {
		select {
		case <-sub.done:
			_ = sub.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
				time.Now().Add(feedWriteTimeout))
			return
		case ev := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := sub.conn.WriteJSON(ev); err != nil {
				f.logger.Debug("feed write failed", "error", err)
				f.remove(sub)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber without blocking.
func (f *Feed) Publish(ev FeedEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs {
		select {
		case sub.send <- ev:
		default:
			f.logger.Debug("feed subscriber lagging, event dropped", "type", ev.Type)
		}
	}
}

// Close disconnects all subscribers and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.done)
	}
}

// PhaseStarted publishes a "phase" event.
func (f *Feed) PhaseStarted(name string, count int) {
	f.Publish(FeedEvent{Type: "phase", Phase: name, Count: count})
}

// Sending is not streamed; the outcome follows as sent or failed.
func (f *Feed) Sending(int, int, string) {}

// Sent publishes a "sent" event.
func (f *Feed) Sent(a runlog.OutboundAttempt) {
	f.Publish(FeedEvent{Type: "sent", Timestamp: stamp(a.Timestamp), Message: a.Body, SID: a.SID, To: a.To})
}

// Failed publishes a "failed" event.
func (f *Feed) Failed(a runlog.OutboundAttempt) {
	f.Publish(FeedEvent{Type: "failed", Timestamp: stamp(a.Timestamp), Message: a.Body, To: a.To, Error: a.Error})
}

// Received publishes a "received" event.
func (f *Feed) Received(e runlog.InboundEvent) {
	f.Publish(FeedEvent{Type: "received", Timestamp: stamp(e.Timestamp), Message: e.Body, From: e.From})
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
