package itemstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/model"
)

type snapshotRecorder struct {
	mu        sync.Mutex
	snapshots [][]model.Item
}

func (r *snapshotRecorder) record(items []model.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, items)
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *snapshotRecorder) last() []model.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func TestNotifierContract(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		return NewNotifier(NewLocal(db.NewTestDB(t)), zerolog.Nop())
	})
}

func TestNotifierDeliversSnapshots(t *testing.T) {
	n := NewNotifier(NewLocal(db.NewTestDB(t)), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &snapshotRecorder{}
	require.NoError(t, n.Subscribe(ctx, rec.record))
	require.Equal(t, 1, rec.count())
	assert.Empty(t, rec.last())

	created, err := n.Create(ctx, sampleItem("Bag", 100))
	require.NoError(t, err)
	require.Equal(t, 2, rec.count())
	assert.Equal(t, []string{created.ID}, ids(rec.last()))

	status := model.StatusReturned
	_, err = n.Update(ctx, created.ID, model.ItemPatch{Status: &status})
	require.NoError(t, err)
	require.Equal(t, 3, rec.count())
	assert.Equal(t, model.StatusReturned, rec.last()[0].Status)

	require.NoError(t, n.Delete(ctx, created.ID))
	require.Equal(t, 4, rec.count())
	assert.Empty(t, rec.last())
}

func TestNotifierSkipsFailedMutations(t *testing.T) {
	n := NewNotifier(NewLocal(db.NewTestDB(t)), zerolog.Nop())
	ctx := context.Background()

	rec := &snapshotRecorder{}
	require.NoError(t, n.Subscribe(ctx, rec.record))

	assert.ErrorIs(t, n.Delete(ctx, "missing"), ErrNotFound)
	assert.Equal(t, 1, rec.count())
}

func TestNotifierUnsubscribesOnCancel(t *testing.T) {
	n := NewNotifier(NewLocal(db.NewTestDB(t)), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, n.Subscribe(ctx, func([]model.Item) {}))
	assert.Equal(t, 1, n.Subscribers())

	cancel()
	assert.Eventually(t, func() bool { return n.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

// mutateOnFirstList creates an item through the notifier right after the
// first listing read the store, before the listing is returned.
type mutateOnFirstList struct {
	Store
	notifier *Notifier
	listed   bool
	created  *model.Item
	err      error
}

func (s *mutateOnFirstList) List(ctx context.Context) ([]model.Item, error) {
	items, err := s.Store.List(ctx)
	if !s.listed {
		s.listed = true
		s.created, s.err = s.notifier.Create(ctx, sampleItem("Gloves", 100))
	}
	return items, err
}

func TestNotifierSubscribeSeesConcurrentMutation(t *testing.T) {
	inner := &mutateOnFirstList{Store: NewLocal(db.NewTestDB(t))}
	n := NewNotifier(inner, zerolog.Nop())
	inner.notifier = n
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &snapshotRecorder{}
	require.NoError(t, n.Subscribe(ctx, rec.record))
	require.NoError(t, inner.err)
	require.NotNil(t, inner.created)

	// The stale initial listing is dropped in favour of the newer snapshot.
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, []string{inner.created.ID}, ids(rec.last()))
}
