package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID      string  `bson:"_id"`
	Name    string  `bson:"name"`
	OwnerID string  `bson:"ownerId"`
	Count   int     `bson:"count"`
	Spent   float64 `bson:"spent"`
}

func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) RecordRepository) {
	ctx := context.Background()

	t.Run("get missing record", func(t *testing.T) {
		repo := newRepo(t)
		var rec testRecord
		err := repo.Get(ctx, "items", "nope", &rec)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create then get", func(t *testing.T) {
		repo := newRepo(t)
		id, err := repo.Create(ctx, "items", "r1", map[string]interface{}{"name": "Tomato", "count": 2})
		require.NoError(t, err)
		assert.Equal(t, "r1", id)

		var rec testRecord
		require.NoError(t, repo.Get(ctx, "items", "r1", &rec))
		assert.Equal(t, "r1", rec.ID)
		assert.Equal(t, "Tomato", rec.Name)
		assert.Equal(t, 2, rec.Count)
	})

	t.Run("create generates id", func(t *testing.T) {
		repo := newRepo(t)
		id, err := repo.Create(ctx, "items", "", map[string]interface{}{"name": "Yam"})
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("create duplicate", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "items", "dup", map[string]interface{}{"name": "a"})
		require.NoError(t, err)
		_, err = repo.Create(ctx, "items", "dup", map[string]interface{}{"name": "b"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("merge creates and merges", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Merge(ctx, "items", "m1", map[string]interface{}{"name": "Maize"}))
		require.NoError(t, repo.Merge(ctx, "items", "m1", map[string]interface{}{"count": 7}))

		var rec testRecord
		require.NoError(t, repo.Get(ctx, "items", "m1", &rec))
		assert.Equal(t, "Maize", rec.Name)
		assert.Equal(t, 7, rec.Count)
	})

	t.Run("update missing record", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Update(ctx, "items", "ghost", map[string]interface{}{"name": "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update increments", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, "items", "c1", map[string]interface{}{"count": 1, "spent": 10.5})
		require.NoError(t, err)

		err = repo.Update(ctx, "items", "c1", map[string]interface{}{
			"count": Increment{By: 2},
			"spent": Increment{By: 7200},
		})
		require.NoError(t, err)

		var rec testRecord
		require.NoError(t, repo.Get(ctx, "items", "c1", &rec))
		assert.Equal(t, 3, rec.Count)
		assert.InDelta(t, 7210.5, rec.Spent, 1e-9)
	})

	t.Run("list filters and orders by id", func(t *testing.T) {
		repo := newRepo(t)
		for _, r := range []testRecord{
			{ID: "p3", Name: "c", OwnerID: "f1"},
			{ID: "p1", Name: "a", OwnerID: "f1"},
			{ID: "p2", Name: "b", OwnerID: "f2"},
		} {
			_, err := repo.Create(ctx, "products", r.ID, map[string]interface{}{"name": r.Name, "ownerId": r.OwnerID})
			require.NoError(t, err)
		}

		var all []testRecord
		require.NoError(t, repo.List(ctx, "products", nil, &all))
		require.Len(t, all, 3)
		assert.Equal(t, "p1", all[0].ID)
		assert.Equal(t, "p3", all[2].ID)

		var owned []testRecord
		require.NoError(t, repo.List(ctx, "products", Filter{"ownerId": "f1"}, &owned))
		require.Len(t, owned, 2)
		assert.Equal(t, "p1", owned[0].ID)
		assert.Equal(t, "p3", owned[1].ID)
	})
}
