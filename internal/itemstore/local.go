package itemstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// LocalKey is the fixed local storage key holding the serialized mapping.
const LocalKey = "lostFound_items_v1"

// Local keeps every item in one JSON object, id -> record, stored under
// LocalKey. Each operation reads the whole mapping, mutates it and writes it
// back in one statement. Nothing else may write LocalKey concurrently.
type Local struct {
	db  *sql.DB
	now func() time.Time
	mu  sync.Mutex
}

// NewLocal creates a local backend on db.
func NewLocal(db *sql.DB) *Local {
	return &Local{db: db, now: time.Now}
}

// Create assigns a local_<millis> id and stores the item.
func (l *Local) Create(ctx context.Context, item model.Item) (*model.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	item.ID = nextLocalID(items, l.now())
	items[item.ID] = item
	if err := l.save(ctx, items); err != nil {
		return nil, err
	}
	return &item, nil
}

// Get returns the item with the given id.
func (l *Local) Get(ctx context.Context, id string) (*model.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	item, ok := items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

// Update merges patch into the stored item.
func (l *Local) Update(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	item, ok := items[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(&item)
	items[id] = item
	if err := l.save(ctx, items); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes the item with the given id.
func (l *Local) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := items[id]; !ok {
		return ErrNotFound
	}
	delete(items, id)
	return l.save(ctx, items)
}

// List returns all stored items.
func (l *Local) List(ctx context.Context) ([]model.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out, nil
}

// Clear removes every locally stored item.
func (l *Local) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return store.RemoveLocal(ctx, l.db, LocalKey)
}

func (l *Local) load(ctx context.Context) (map[string]model.Item, error) {
	raw, ok, err := store.GetLocal(ctx, l.db, LocalKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]model.Item{}, nil
	}
	return DecodeMapping([]byte(raw))
}

func (l *Local) save(ctx context.Context, items map[string]model.Item) error {
	data, err := EncodeMapping(items)
	if err != nil {
		return err
	}
	return store.SetLocal(ctx, l.db, LocalKey, string(data))
}

// EncodeMapping serializes items as a JSON object keyed by id.
func EncodeMapping(items map[string]model.Item) ([]byte, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encoding local items: %w", err)
	}
	return data, nil
}

// DecodeMapping parses a JSON object keyed by id. The key is authoritative
// for each record's ID.
func DecodeMapping(data []byte) (map[string]model.Item, error) {
	items := map[string]model.Item{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding local items: %w", err)
	}
	for id, item := range items {
		item.ID = id
		items[id] = item
	}
	return items, nil
}

func nextLocalID(items map[string]model.Item, now time.Time) string {
	base := "local_" + strconv.FormatInt(now.UnixMilli(), 10)
	id := base
	for n := 1; ; n++ {
		if _, taken := items[id]; !taken {
			return id
		}
		id = base + "_" + strconv.Itoa(n)
	}
}
