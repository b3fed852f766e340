package broadcast

import (
	"log/slog"
	"sync"

	"github.com/pscheid92/linkorbit/internal/adapter/metrics"
	"github.com/pscheid92/linkorbit/internal/domain"
)

// Subscription is one viewer's delivery channel.
type Subscription struct {
	id        uint64
	hub       *Hub
	box       *mailbox
	done      chan struct{}
	closeOnce sync.Once
}

// Ready fires when messages are waiting to be drained.
func (s *Subscription) Ready() <-chan struct{} { return s.box.ready }

// Drain returns the queued messages, oldest first.
func (s *Subscription) Drain() [][]byte { return s.box.drain() }

// Done is closed when the hub shuts down or the subscription is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unsubscribes the viewer. It is safe to call more than once.
func (s *Subscription) Close() { s.hub.unsubscribe(s) }

func (s *Subscription) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Hub keeps the set of connected viewers and pushes every event to all of
// them.
type Hub struct {
	queueSize      int
	maxViewers     int
	onCountChanged func(int)
	metrics        *metrics.StreamMetrics

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates a hub whose viewers each buffer up to queueSize messages.
// onCountChanged, if set, receives the viewer count after every change.
// maxViewers <= 0 means no limit.
func NewHub(queueSize, maxViewers int, onCountChanged func(int), streamMetrics *metrics.StreamMetrics) *Hub {
	return &Hub{
		queueSize:      queueSize,
		maxViewers:     maxViewers,
		onCountChanged: onCountChanged,
		metrics:        streamMetrics,
		subs:           make(map[uint64]*Subscription),
	}
}

// Subscribe registers a viewer. When initial is not nil it is queued before
// anything else reaches the new viewer.
func (h *Hub) Subscribe(initial domain.Event) (*Subscription, error) {
	sub := &Subscription{hub: h, box: newMailbox(h.queueSize), done: make(chan struct{})}

	if initial != nil {
		data, err := Encode(initial)
		if err != nil {
			return nil, err
		}
		sub.box.push(data)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, domain.ErrHubClosed
	}
	if h.maxViewers > 0 && len(h.subs) >= h.maxViewers {
		if h.metrics != nil {
			h.metrics.Rejected.Inc()
		}
		return nil, domain.ErrTooManyViewers
	}

	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.countChanged()
	return sub, nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.stop()
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	h.countChanged()
}

// countChanged must be called with h.mu held so counts are reported in order.
func (h *Hub) countChanged() {
	n := len(h.subs)
	if h.metrics != nil {
		h.metrics.Viewers.Set(float64(n))
	}
	if h.onCountChanged != nil {
		h.onCountChanged(n)
	}
}

// Publish encodes evt once and queues it for every viewer. It never blocks
// on a viewer.
func (h *Hub) Publish(evt domain.Event) {
	data, err := Encode(evt)
	if err != nil {
		slog.Error("Failed to encode event", "type", evt.EventType(), "error", err)
		return
	}

	h.mu.RLock()
	dropped := 0
	for _, sub := range h.subs {
		if sub.box.push(data) {
			dropped++
		}
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(evt.EventType()).Inc()
		if dropped > 0 {
			h.metrics.EventsDropped.Add(float64(dropped))
		}
	}
}

func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.stop()
		delete(h.subs, id)
	}
	h.countChanged()
	slog.Info("Broadcast hub closed")
}
