// Package board implements the item board actions: reporting items, marking
// them returned, deleting them and producing the filtered, sorted view.
//
// Ownership checks are advisory. They compare the acting session with the
// stored ownerId and prevent accidental edits between cooperating users; the
// backend itself accepts any write.
package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/erazemk/lostfound/internal/itemstore"
	"github.com/erazemk/lostfound/internal/metrics"
	"github.com/erazemk/lostfound/internal/model"
)

// Board errors.
var (
	ErrMissingField    = errors.New("required field is empty")
	ErrInvalidStatus   = errors.New("status must be lost or found")
	ErrNotAuthorized   = errors.New("only the owner can change this item")
	ErrAlreadyReturned = errors.New("item is already returned")
	ErrNotFound        = itemstore.ErrNotFound
	ErrBackend         = errors.New("item backend failed")
)

// FieldError reports a required field left empty.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + " is required"
}

func (e *FieldError) Unwrap() error {
	return ErrMissingField
}

// Submission is the raw form input for a new item.
type Submission struct {
	ItemName    string `json:"itemName"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Location    string `json:"location"`
	ContactInfo string `json:"contactInfo"`
}

// Board runs actions against the item store selected at startup.
type Board struct {
	store   itemstore.Store
	now     func() time.Time
	logger  zerolog.Logger
	metrics metrics.Recorder
}

// BoardParams configures a Board.
type BoardParams struct {
	Store   itemstore.Store
	Logger  zerolog.Logger
	Metrics metrics.Recorder
	Now     func() time.Time
}

// New creates a Board.
func New(params BoardParams) *Board {
	b := &Board{
		store:   params.Store,
		now:     params.Now,
		logger:  params.Logger.With().Str("component", "board").Logger(),
		metrics: params.Metrics,
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.metrics == nil {
		b.metrics = metrics.Noop{}
	}
	return b
}

// Submit validates the submission and stores a new item owned by sess.
// Nothing is written when validation fails.
func (b *Board) Submit(ctx context.Context, sess *model.Session, sub Submission) (item *model.Item, err error) {
	defer b.observe(ctx, "submit", time.Now(), &err)

	clean, err := validate(sub)
	if err != nil {
		return nil, err
	}

	clean.OwnerID = sess.ActorID()
	clean.OwnerEmail = sess.ActorEmail()
	clean.Timestamp = b.now().UnixMilli()

	item, err = b.store.Create(ctx, clean)
	if err != nil {
		return nil, b.backendError("creating item", err)
	}

	b.logger.Info().
		Str("item_id", item.ID).
		Str("owner_id", item.OwnerID).
		Str("status", string(item.Status)).
		Msg("Item reported")
	return item, nil
}

// MarkReturned sets the item returned if sess owns it. The return time is
// never earlier than the creation time.
func (b *Board) MarkReturned(ctx context.Context, sess *model.Session, id string) (item *model.Item, err error) {
	defer b.observe(ctx, "mark_returned", time.Now(), &err)

	current, err := b.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if current.Returned() {
		return nil, ErrAlreadyReturned
	}

	status := model.StatusReturned
	when := max(b.now().UnixMilli(), current.Timestamp)
	item, err = b.store.Update(ctx, id, model.ItemPatch{Status: &status, ReturnedDate: &when})
	if err != nil {
		if errors.Is(err, itemstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, b.backendError("updating item", err)
	}

	b.logger.Info().Str("item_id", id).Str("actor_id", sess.ActorID()).Msg("Item marked returned")
	return item, nil
}

// Delete removes the item if sess owns it.
func (b *Board) Delete(ctx context.Context, sess *model.Session, id string) (err error) {
	defer b.observe(ctx, "delete", time.Now(), &err)

	if _, err := b.owned(ctx, sess, id); err != nil {
		return err
	}
	if err := b.store.Delete(ctx, id); err != nil {
		if errors.Is(err, itemstore.ErrNotFound) {
			return ErrNotFound
		}
		return b.backendError("deleting item", err)
	}

	b.logger.Info().Str("item_id", id).Str("actor_id", sess.ActorID()).Msg("Item deleted")
	return nil
}

// View lists the items passing filter, newest first.
func (b *Board) View(ctx context.Context, filter model.Filter) (items []model.Item, err error) {
	defer b.observe(ctx, "view", time.Now(), &err)

	all, err := b.store.List(ctx)
	if err != nil {
		return nil, b.backendError("listing items", err)
	}
	return Arrange(all, filter), nil
}

// Arrange applies filter to items and sorts the result by descending
// creation time. Equal timestamps are ordered by id so renders are stable.
// The input slice is not modified.
func Arrange(items []model.Item, filter model.Filter) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if filter.Match(item) {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *Board) owned(ctx context.Context, sess *model.Session, id string) (*model.Item, error) {
	item, err := b.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, itemstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, b.backendError("reading item", err)
	}
	if !sess.Owns(item) {
		b.logger.Warn().
			Str("item_id", id).
			Str("actor_id", sess.ActorID()).
			Str("owner_id", item.OwnerID).
			Msg("Rejected change by non-owner")
		return nil, ErrNotAuthorized
	}
	return item, nil
}

func (b *Board) backendError(action string, err error) error {
	b.logger.Error().Err(err).Str("action", action).Msg("Backend operation failed")
	return fmt.Errorf("%w: %s: %w", ErrBackend, action, err)
}

func (b *Board) observe(ctx context.Context, op string, start time.Time, err *error) {
	b.metrics.Observe(ctx, op, *err == nil, time.Since(start))
}

func validate(sub Submission) (model.Item, error) {
	item := model.Item{
		ItemName:    strings.TrimSpace(sub.ItemName),
		Description: strings.TrimSpace(sub.Description),
		Location:    strings.TrimSpace(sub.Location),
		ContactInfo: strings.TrimSpace(sub.ContactInfo),
	}

	switch {
	case item.ItemName == "":
		return item, &FieldError{Field: "itemName"}
	case item.Location == "":
		return item, &FieldError{Field: "location"}
	case item.ContactInfo == "":
		return item, &FieldError{Field: "contactInfo"}
	}

	status := model.Status(strings.ToLower(strings.TrimSpace(sub.Status)))
	switch status {
	case "":
		status = model.StatusLost
	case model.StatusLost, model.StatusFound:
	default:
		return item, ErrInvalidStatus
	}
	item.Status = status
	return item, nil
}
