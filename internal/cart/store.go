package cart

import (
	"sync"

	"github.com/fjod/agromarket/internal/domain"
)

const DefaultCommissionRate = 0.20

// Store is a buyer's in-process cart. Lines keep insertion order and are
// merged by product id; no line with a quantity below one is ever stored.
type Store struct {
	mu             sync.RWMutex
	items          []domain.CartLineItem
	index          map[string]int
	commissionRate float64
}

func NewStore(commissionRate float64) *Store {
	return &Store{
		index:          make(map[string]int),
		commissionRate: commissionRate,
	}
}

// AddItem adds quantity of product, merging with an existing line.
// Quantities below one are treated as one.
func (s *Store) AddItem(product domain.Product, quantity int) domain.CartLineItem {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[product.ID]; ok {
		s.items[i].Quantity += quantity
		return s.items[i]
	}

	item := domain.CartLineItem{
		ProductID:  product.ID,
		Name:       product.Name,
		UnitPrice:  product.Price,
		Unit:       product.Unit,
		FarmerName: product.OwnerName,
		ImageRef:   product.ImageRef,
		Quantity:   quantity,
	}
	s.index[product.ID] = len(s.items)
	s.items = append(s.items, item)
	return item
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
// It reports whether the line existed.
func (s *Store) UpdateQuantity(productID string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[productID]
	if !ok {
		return false
	}
	if quantity <= 0 {
		s.removeAt(i)
		return true
	}
	s.items[i].Quantity = quantity
	return true
}

func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[productID]; ok {
		s.removeAt(i)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = make(map[string]int)
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartLineItem(nil), s.items...)
}

func (s *Store) Totals() domain.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeTotals(s.items, s.commissionRate)
}

// Snapshot returns the lines and their totals read under one lock.
func (s *Store) Snapshot() ([]domain.CartLineItem, domain.Totals) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartLineItem(nil), s.items...), domain.ComputeTotals(s.items, s.commissionRate)
}

// ItemCount is the sum of quantities.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.items {
		n += item.Quantity
	}
	return n
}

// Len is the number of distinct lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) removeAt(i int) {
	delete(s.index, s.items[i].ProductID)
	s.items = append(s.items[:i], s.items[i+1:]...)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ProductID] = j
	}
}
