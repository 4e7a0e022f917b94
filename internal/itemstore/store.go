// Package itemstore persists board items. Two interchangeable backends exist:
// a remote realtime collection kept in Redis and a local mapping persisted
// as one JSON blob in SQLite. The backend is chosen once by Open.
package itemstore

import (
	"context"
	"errors"

	"github.com/erazemk/lostfound/internal/model"
)

// ErrNotFound is returned when an operation targets a missing item.
var ErrNotFound = errors.New("item not found")

// Store is the backend-independent item contract. List returns records in no
// particular order; callers sort and filter.
type Store interface {
	Create(ctx context.Context, item model.Item) (*model.Item, error)
	Get(ctx context.Context, id string) (*model.Item, error)
	Update(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Item, error)
}

// SnapshotFunc receives the full current item set.
type SnapshotFunc func(items []model.Item)

// Subscriber delivers change notifications. Subscribe calls fn with the
// current snapshot right away and again after every change, until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, fn SnapshotFunc) error
}

// Feed is a store whose changes can be observed.
type Feed interface {
	Store
	Subscriber
}

// Kind names the backend behind a Feed.
type Kind string

// Backend kinds.
const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)
