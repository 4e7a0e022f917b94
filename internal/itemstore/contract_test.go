package itemstore

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/lostfound/internal/model"
)

func sampleItem(name string, ts int64) model.Item {
	return model.Item{
		ItemName:    name,
		Description: "black leather",
		Status:      model.StatusLost,
		Location:    "Library",
		ContactInfo: "ana@example.com",
		Timestamp:   ts,
		OwnerID:     "u1",
		OwnerEmail:  "ana@example.com",
	}
}

// testStoreContract runs the behavior every backend must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create then list", func(t *testing.T) {
		s := newStore(t)
		in := sampleItem("Wallet", 100)

		created, err := s.Create(ctx, in)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)

		want := in
		want.ID = created.ID
		assert.Equal(t, want, items[0])
	})

	t.Run("ids are unique", func(t *testing.T) {
		s := newStore(t)
		seen := map[string]bool{}
		for i := 0; i < 5; i++ {
			created, err := s.Create(ctx, sampleItem("Pen", 100))
			require.NoError(t, err)
			assert.False(t, seen[created.ID], "duplicate id %s", created.ID)
			seen[created.ID] = true
		}
		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, items, 5)
	})

	t.Run("get", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, sampleItem("Umbrella", 100))
		require.NoError(t, err)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update merges fields", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, sampleItem("Keys", 100))
		require.NoError(t, err)

		status := model.StatusReturned
		var when int64 = 500
		updated, err := s.Update(ctx, created.ID, model.ItemPatch{Status: &status, ReturnedDate: &when})
		require.NoError(t, err)
		assert.Equal(t, model.StatusReturned, updated.Status)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReturned, got.Status)
		require.NotNil(t, got.ReturnedDate)
		assert.Equal(t, int64(500), *got.ReturnedDate)
		assert.Equal(t, "Keys", got.ItemName)
		assert.Equal(t, "u1", got.OwnerID)
	})

	t.Run("update missing", func(t *testing.T) {
		s := newStore(t)
		name := "x"
		_, err := s.Update(ctx, "missing", model.ItemPatch{ItemName: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		a, err := s.Create(ctx, sampleItem("A", 100))
		require.NoError(t, err)
		b, err := s.Create(ctx, sampleItem("B", 200))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, a.ID))
		assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)

		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, b.ID, items[0].ID)
	})

	t.Run("empty list", func(t *testing.T) {
		s := newStore(t)
		items, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func ids(items []model.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	sort.Strings(out)
	return out
}
