package view

import (
	"testing"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog() []domain.Product {
	return []domain.Product{
		{ID: "1", Name: "tomato", OwnerName: "Green Acres", Category: "Vegetables", Price: 2500, Rating: 4.1},
		{ID: "2", Name: "Yam", OwnerName: "Oyo Farms", Category: "Tubers", Price: 1200, Rating: 4.8},
		{ID: "3", Name: "Banana", OwnerName: "Green Acres", Category: "Fruits", Price: 800, Rating: 3.9},
		{ID: "4", Name: "Éwédú", OwnerName: "Mama Put", Category: "Vegetables", Price: 300, Rating: 4.8},
		{ID: "5", Name: "Cassava", OwnerName: "Oyo Farms", Category: "Tubers", Price: 1200, Rating: 2.0},
	}
}

func ids(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "everything by name",
			query: Query{},
			want:  []string{"3", "5", "4", "1", "2"},
		},
		{
			name:  "free text matches owner name",
			query: Query{FreeText: "  green ", Sort: SortByName},
			want:  []string{"3", "1"},
		},
		{
			name:  "free text is case insensitive on name",
			query: Query{FreeText: "YAM"},
			want:  []string{"2"},
		},
		{
			name:  "category filter",
			query: Query{Category: "Tubers", Sort: SortByPrice},
			want:  []string{"2", "5"},
		},
		{
			name:  "all category",
			query: Query{Category: domain.CategoryAll, Sort: SortByPrice},
			want:  []string{"4", "3", "2", "5", "1"},
		},
		{
			name:  "rating descending keeps ties stable",
			query: Query{Sort: SortByRating},
			want:  []string{"2", "4", "1", "3", "5"},
		},
		{
			name:  "unknown sort falls back to name",
			query: Query{Sort: "popularity"},
			want:  []string{"3", "5", "4", "1", "2"},
		},
		{
			name:  "no match",
			query: Query{FreeText: "mango"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Derive(catalog(), tt.query)))
		})
	}
}

func TestDerive_DoesNotMutateInput(t *testing.T) {
	in := catalog()
	before := ids(in)

	_ = Derive(in, Query{Sort: SortByPrice})
	assert.Equal(t, before, ids(in))
}

func TestDerive_Deterministic(t *testing.T) {
	q := Query{FreeText: "a", Sort: SortByRating}
	first := Derive(catalog(), q)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Derive(catalog(), q))
	}
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortByPrice, ParseSortKey(" Price "))
	assert.Equal(t, SortByRating, ParseSortKey("rating"))
	assert.Equal(t, SortByName, ParseSortKey(""))
	assert.Equal(t, SortByName, ParseSortKey("newest"))
}

func TestCategories(t *testing.T) {
	c := Categories()
	assert.Equal(t, domain.CategoryAll, c[0])
	assert.Len(t, c, len(domain.Categories)+1)
}
