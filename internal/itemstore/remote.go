package itemstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/config"
	"github.com/erazemk/lostfound/internal/model"
)

// Change kinds published on the collection's change channel.
const (
	ChangeAdded   = "added"
	ChangeChanged = "changed"
	ChangeRemoved = "removed"
)

// DefaultCoalesce is how long Subscribe waits for a burst of changes to
// settle before re-reading the collection.
const DefaultCoalesce = 50 * time.Millisecond

// replaceScript overwrites a hash field only while it still exists, so an
// update never brings back an item deleted after it was read.
var replaceScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Change is the message published after every write.
type Change struct {
	Kind   string `json:"kind"`
	ItemID string `json:"itemId"`
}

// Remote keeps items in a Redis hash named after the collection, one field
// per item id. Writes announce themselves on "<collection>:changes".
// Concurrent writers follow last write wins.
type Remote struct {
	client     *redis.Client
	collection string
	coalesce   time.Duration
	logger     zerolog.Logger
}

// RemoteParams configures a Remote.
type RemoteParams struct {
	Client     *redis.Client
	Collection string
	// Coalesce is the quiet period before a notification burst triggers a
	// snapshot. Zero delivers one snapshot per change.
	Coalesce time.Duration
	Logger   zerolog.Logger
}

// NewRemote creates a remote backend.
func NewRemote(params RemoteParams) *Remote {
	collection := params.Collection
	if collection == "" {
		collection = "items"
	}
	return &Remote{
		client:     params.Client,
		collection: collection,
		coalesce:   params.Coalesce,
		logger:     params.Logger.With().Str("component", "remote_store").Str("collection", collection).Logger(),
	}
}

// NewRedisClient creates a Redis client for the remote parameters.
func NewRedisClient(cfg config.RemoteConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

// ChangesChannel returns the pub/sub channel carrying change messages.
func (r *Remote) ChangesChannel() string {
	return r.collection + ":changes"
}

// Create stores item under a new UUID.
func (r *Remote) Create(ctx context.Context, item model.Item) (*model.Item, error) {
	item.ID = uuid.NewString()
	if err := r.put(ctx, item); err != nil {
		return nil, err
	}
	r.announce(ctx, ChangeAdded, item.ID)
	return &item, nil
}

// Get returns the item with the given id.
func (r *Remote) Get(ctx context.Context, id string) (*model.Item, error) {
	raw, err := r.client.HGet(ctx, r.collection, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading item %s: %w", id, err)
	}
	return decodeItem(id, raw)
}

// Update merges patch into the stored item.
func (r *Remote) Update(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	item, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(item)
	if err := r.replace(ctx, *item); err != nil {
		return nil, err
	}
	r.announce(ctx, ChangeChanged, id)
	return item, nil
}

// Delete removes the item with the given id.
func (r *Remote) Delete(ctx context.Context, id string) error {
	n, err := r.client.HDel(ctx, r.collection, id).Result()
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	r.announce(ctx, ChangeRemoved, id)
	return nil
}

// List returns every item in the collection.
func (r *Remote) List(ctx context.Context) ([]model.Item, error) {
	all, err := r.client.HGetAll(ctx, r.collection).Result()
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items := make([]model.Item, 0, len(all))
	for id, raw := range all {
		item, err := decodeItem(id, raw)
		if err != nil {
			r.logger.Warn().Err(err).Str("item_id", id).Msg("Skipping undecodable item")
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// Subscribe listens on the change channel, delivers the current snapshot
// and then a fresh one after every change burst. The listener stops when
// ctx is done.
func (r *Remote) Subscribe(ctx context.Context, fn SnapshotFunc) error {
	pubsub := r.client.Subscribe(ctx, r.ChangesChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribing to %s: %w", r.ChangesChannel(), err)
	}

	items, err := r.List(ctx)
	if err != nil {
		pubsub.Close()
		return err
	}
	fn(items)

	go r.listen(ctx, pubsub, fn)
	return nil
}

// Close closes the Redis client.
func (r *Remote) Close() error {
	return r.client.Close()
}

func (r *Remote) listen(ctx context.Context, pubsub *redis.PubSub, fn SnapshotFunc) {
	defer pubsub.Close()

	refresh := func() {
		if ctx.Err() != nil {
			return
		}
		items, err := r.List(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to refresh snapshot")
			return
		}
		fn(items)
	}

	trigger := refresh
	if r.coalesce > 0 {
		debounced := debounce.New(r.coalesce)
		trigger = func() { debounced(refresh) }
	}

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Info().Msg("Change channel closed")
				return
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				r.logger.Warn().Err(err).Msg("Ignoring malformed change message")
				continue
			}
			r.logger.Debug().Str("kind", change.Kind).Str("item_id", change.ItemID).Msg("Change received")
			trigger()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Remote) put(ctx context.Context, item model.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding item: %w", err)
	}
	if err := r.client.HSet(ctx, r.collection, item.ID, data).Err(); err != nil {
		return fmt.Errorf("writing item %s: %w", item.ID, err)
	}
	return nil
}

// replace writes item over an existing record. ErrNotFound means the record
// was removed in the meantime.
func (r *Remote) replace(ctx context.Context, item model.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding item: %w", err)
	}
	n, err := replaceScript.Run(ctx, r.client, []string{r.collection}, item.ID, data).Int()
	if err != nil {
		return fmt.Errorf("writing item %s: %w", item.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// announce publishes a change. The write already happened, so a failed
// publish only delays other viewers until the next change.
func (r *Remote) announce(ctx context.Context, kind, id string) {
	data, err := json.Marshal(Change{Kind: kind, ItemID: id})
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, r.ChangesChannel(), data).Err(); err != nil {
		r.logger.Warn().Err(err).Str("kind", kind).Str("item_id", id).Msg("Failed to publish change")
	}
}

func decodeItem(id, raw string) (*model.Item, error) {
	var item model.Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("decoding item %s: %w", id, err)
	}
	item.ID = id
	return &item, nil
}
