package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	runRepositoryContract(t, func(*testing.T) RecordRepository {
		return NewMemoryRepository()
	})
}

func TestMemoryRepository_ListEmptyCollection(t *testing.T) {
	repo := NewMemoryRepository()
	var out []testRecord
	require.NoError(t, repo.List(context.Background(), "empty", nil, &out))
	assert.Empty(t, out)
}

func TestMemoryRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_, err := repo.Create(ctx, "items", "r1", map[string]interface{}{"name": "Okra"})
	require.NoError(t, err)

	var first testRecord
	require.NoError(t, repo.Get(ctx, "items", "r1", &first))
	first.Name = "changed"

	var second testRecord
	require.NoError(t, repo.Get(ctx, "items", "r1", &second))
	assert.Equal(t, "Okra", second.Name)
}

func TestAddNumber(t *testing.T) {
	tests := []struct {
		name    string
		current interface{}
		by      float64
		want    interface{}
	}{
		{name: "missing field", current: nil, by: 1, want: int64(1)},
		{name: "int32", current: int32(4), by: 1, want: int64(5)},
		{name: "int64 fractional", current: int64(4), by: 0.5, want: 4.5},
		{name: "float", current: 1.5, by: 1, want: 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addNumber(tt.current, Increment{By: tt.by}))
		})
	}
}
