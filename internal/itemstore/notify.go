package itemstore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/model"
)

// Notifier turns a store without push notifications into a Feed: after each
// successful mutation it re-lists the store and hands the snapshot to every
// subscriber.
type Notifier struct {
	Store

	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	seq    uint64
	logger zerolog.Logger
}

// subscriber drops snapshots older than the last one it delivered. Every
// snapshot is listed after its sequence number was taken, so a higher
// number never misses a mutation a lower one saw.
type subscriber struct {
	mu        sync.Mutex
	fn        SnapshotFunc
	seq       uint64
	delivered bool
}

func (s *subscriber) deliver(seq uint64, items []model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered && seq <= s.seq {
		return
	}
	s.seq, s.delivered = seq, true
	s.fn(items)
}

// NewNotifier wraps s.
func NewNotifier(s Store, logger zerolog.Logger) *Notifier {
	return &Notifier{
		Store:  s,
		subs:   make(map[int]*subscriber),
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

// Create stores item and notifies subscribers.
func (n *Notifier) Create(ctx context.Context, item model.Item) (*model.Item, error) {
	created, err := n.Store.Create(ctx, item)
	if err != nil {
		return nil, err
	}
	n.publish(ctx)
	return created, nil
}

// Update patches the item and notifies subscribers.
func (n *Notifier) Update(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	updated, err := n.Store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	n.publish(ctx)
	return updated, nil
}

// Delete removes the item and notifies subscribers.
func (n *Notifier) Delete(ctx context.Context, id string) error {
	if err := n.Store.Delete(ctx, id); err != nil {
		return err
	}
	n.publish(ctx)
	return nil
}

// Subscribe registers fn and then delivers the current snapshot. A mutation
// that lands while the snapshot is being read reaches fn through its own
// notification.
func (n *Notifier) Subscribe(ctx context.Context, fn SnapshotFunc) error {
	sub := &subscriber{fn: fn}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	seq := n.seq
	n.mu.Unlock()

	items, err := n.Store.List(ctx)
	if err != nil {
		n.unsubscribe(id)
		return err
	}
	sub.deliver(seq, items)

	go func() {
		<-ctx.Done()
		n.unsubscribe(id)
	}()
	return nil
}

// Subscribers returns the number of registered subscribers.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Notifier) unsubscribe(id int) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

func (n *Notifier) publish(ctx context.Context) {
	n.mu.Lock()
	n.seq++
	seq := n.seq
	subs := make([]*subscriber, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	// The mutation already succeeded; a canceled request must not skip the
	// refresh.
	items, err := n.Store.List(context.WithoutCancel(ctx))
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to list items for subscribers")
		return
	}
	for _, sub := range subs {
		snapshot := make([]model.Item, len(items))
		copy(snapshot, items)
		sub.deliver(seq, snapshot)
	}
}
