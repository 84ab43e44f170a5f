// Package view derives the filtered and sorted product list shown to buyers.
package view

import (
	"sort"
	"strings"

	"github.com/fjod/agromarket/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortKey string

const (
	SortByName   SortKey = "name"
	SortByPrice  SortKey = "price"
	SortByRating SortKey = "rating"
)

// ParseSortKey maps user input to a sort key. Anything unrecognized sorts
// by name.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByPrice:
		return SortByPrice
	case SortByRating:
		return SortByRating
	default:
		return SortByName
	}
}

type Query struct {
	FreeText string
	Category string
	Sort     SortKey
}

// Categories lists the filter choices, "All" first.
func Categories() []string {
	return append([]string{domain.CategoryAll}, domain.Categories...)
}

// Derive returns the products matching q in q's order. The input is not
// modified.
func Derive(catalog []domain.Product, q Query) []domain.Product {
	text := strings.ToLower(strings.TrimSpace(q.FreeText))
	category := strings.TrimSpace(q.Category)
	if category == "" {
		category = domain.CategoryAll
	}

	out := make([]domain.Product, 0, len(catalog))
	for _, p := range catalog {
		if !matchesText(p, text) {
			continue
		}
		if category != domain.CategoryAll && p.Category != category {
			continue
		}
		out = append(out, p)
	}

	switch ParseSortKey(string(q.Sort)) {
	case SortByPrice:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortByRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	default:
		// collators are not safe for concurrent use
		c := collate.New(language.Und, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool {
			return c.CompareString(out[i].Name, out[j].Name) < 0
		})
	}
	return out
}

func matchesText(p domain.Product, text string) bool {
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), text) ||
		strings.Contains(strings.ToLower(p.OwnerName), text)
}
