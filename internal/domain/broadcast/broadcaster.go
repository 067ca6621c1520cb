// Package broadcast fans ingested records out to live subscribers.
//
// Membership is self-healing: a subscriber whose delivery fails is removed
// during the same broadcast, so there is no separate health-check pass.
// Delivery is best-effort and never blocks on a slow subscriber.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
	"github.com/shepherdlog/shepherd/internal/infrastructure/monitoring"
	"github.com/shepherdlog/shepherd/internal/shared/id"
	"github.com/shepherdlog/shepherd/internal/shared/types"
)

// DefaultBuffer is the per-subscriber channel depth used when none is
// configured. A full buffer counts as a failed delivery.
const DefaultBuffer = 256

// Subscription is one registered subscriber channel. It is owned by the
// Broadcaster from Register until Unregister; consumers read records from
// Records() and watch Done() for eviction.
type Subscription struct {
	ID   id.SubscriptionID
	ch   chan types.LogRecord
	done chan struct{}
	once sync.Once
}

// Records returns the channel on which broadcast records arrive, in
// broadcast order.
func (s *Subscription) Records() <-chan types.LogRecord { return s.ch }

// Done is closed when the subscription has been unregistered, whether by
// the consumer or by the broadcaster after a failed delivery.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Broadcaster maintains the set of live subscriber channels and delivers
// every broadcast record to each of them.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[id.SubscriptionID]*Subscription
	buffer  int
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a Broadcaster with the given per-subscriber buffer depth.
func New(buffer int, logger *logging.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		subs:   make(map[id.SubscriptionID]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// WithMetrics adds metrics tracking to the broadcaster.
func (b *Broadcaster) WithMetrics(m *monitoring.Metrics) *Broadcaster {
	b.metrics = m
	return b
}

// Register adds a new subscriber and returns its subscription handle.
func (b *Broadcaster) Register() *Subscription {
	sub := &Subscription{
		ID:   id.NewSubscriptionID(),
		ch:   make(chan types.LogRecord, b.buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug("subscriber registered",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("subscribers", count),
	)
	if b.metrics != nil {
		b.metrics.SetSubscribers(count)
	}
	return sub
}

// Unregister removes a subscriber. Idempotent: removing an already-removed
// subscription is a no-op.
func (b *Broadcaster) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	_, present := b.subs[sub.ID]
	delete(b.subs, sub.ID)
	count := len(b.subs)
	b.mu.Unlock()

	sub.close()

	if !present {
		return
	}
	b.logger.Debug("subscriber unregistered",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("subscribers", count),
	)
	if b.metrics != nil {
		b.metrics.SetSubscribers(count)
	}
}

// Len returns the number of registered subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Broadcast delivers a record to every registered subscriber. The
// subscriber set is snapshotted under the read lock, then delivery happens
// outside it: a non-blocking send into each subscriber's buffer, so one
// stalled consumer cannot delay the rest. Subscribers whose buffers are
// full are evicted as part of the same call. Zero subscribers is a no-op.
func (b *Broadcaster) Broadcast(rec types.LogRecord) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	var failed []*Subscription
	for _, sub := range targets {
		select {
		case sub.ch <- rec:
			if b.metrics != nil {
				b.metrics.IncRecordsDelivered()
			}
		default:
			failed = append(failed, sub)
		}
	}

	for _, sub := range failed {
		b.logger.Warn("evicting slow subscriber",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("record_id", rec.ID),
		)
		if b.metrics != nil {
			b.metrics.IncDeliveriesDropped()
			b.metrics.IncSubscribersEvicted()
		}
		b.Unregister(sub)
	}
}

// Close unregisters every subscriber. Used during shutdown.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[id.SubscriptionID]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	if b.metrics != nil {
		b.metrics.SetSubscribers(0)
	}
}
