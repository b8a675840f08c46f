// Package sse streams session change notifications to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/session"
)

var _ session.Notifier = (*Broker)(nil)

// Defaults for NewBroker.
const (
	DefaultGraphThrottle = 2 * time.Second
	DefaultKeepAlive     = 30 * time.Second
	clientBuffer         = 64
)

// Notice is the data payload of every event.
type Notice struct {
	Seq  uint64 `json:"seq"`
	File string `json:"file,omitempty"`
}

type notifyReq struct {
	kind string
	file string
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets the interval between comment pings on idle streams.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.keepAlive = d
		}
	}
}

// Broker fans session notifications out to connected clients.
//
// A single loop goroutine owns the client set, the sequence counter and the
// graph coalescing state. Public methods talk to it through channels.
//
// graph.updated bursts are coalesced: at most one is sent per throttle
// interval, and the last one of a burst is always delivered once the
// interval elapses.
type Broker struct {
	graphMin  time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	notifyCh      chan notifyReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. A non-positive graphThrottle selects
// DefaultGraphThrottle.
func NewBroker(graphThrottle time.Duration, opts ...Option) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = DefaultGraphThrottle
	}

	b := &Broker{
		graphMin:      graphThrottle,
		keepAlive:     DefaultKeepAlive,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		notifyCh:      make(chan notifyReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq          uint64
		lastGraph    time.Time
		pendingGraph *notifyReq
		graphTimer   *time.Timer
		graphFire    <-chan time.Time
	)

	send := func(req notifyReq) {
		seq++
		payload, err := json.Marshal(Notice{Seq: seq, File: req.file})
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, req.kind, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				metrics.EventsDropped.WithLabelValues(metrics.ReasonSlowClient).Inc()
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			if graphTimer != nil {
				graphTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			metrics.EventClients.Sub(float64(len(clients)))
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			metrics.EventClients.Inc()

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
				metrics.EventClients.Dec()
			}

		case req := <-b.notifyCh:
			if req.kind != session.NotifyGraphUpdated {
				send(req)
				continue
			}
			if wait := b.graphMin - time.Since(lastGraph); wait > 0 {
				pendingGraph = &req
				if graphFire == nil {
					graphTimer = time.NewTimer(wait)
					graphFire = graphTimer.C
				}
				continue
			}
			lastGraph = time.Now()
			send(req)

		case <-graphFire:
			graphFire = nil
			if pendingGraph != nil {
				lastGraph = time.Now()
				send(*pendingGraph)
				pendingGraph = nil
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
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

// Notify implements session.Notifier. It never blocks the caller: when the
// queue is full the notification is dropped.
func (b *Broker) Notify(kind, file string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.notifyCh <- notifyReq{kind: kind, file: file}:
	case <-b.stopped:
	default:
		metrics.EventsDropped.WithLabelValues(metrics.ReasonQueueFull).Inc()
	}
}

// ServeHTTP is the event-stream endpoint (GET /api/events).
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

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
