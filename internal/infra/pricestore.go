package infra

import (
	"sort"
	"sync"

	"assetwatch/internal/domain"
)

// PriceStore keeps the last-known sample per symbol for one exchange.
// It is mutated only by its owning exchange connection and read by the
// monitor layer. A sample strictly older than the stored one for the same
// symbol is discarded, so a lagging REST poll cannot clobber a fresher
// websocket update.
type PriceStore struct {
	mu     sync.RWMutex
	prices map[string]domain.PriceData
	notify func(domain.PriceData)
}

// NewPriceStore creates an empty store. notify, if non-nil, is invoked for
// every accepted sample; it must not block.
func NewPriceStore(notify func(domain.PriceData)) *PriceStore {
	return &PriceStore{
		prices: make(map[string]domain.PriceData),
		notify: notify,
	}
}

// Put stores the sample unless a newer one is already present.
// Returns true when the sample was accepted.
func (s *PriceStore) Put(pd domain.PriceData) bool {
	s.mu.Lock()
	existing, ok := s.prices[pd.Symbol]
	if ok && existing.Timestamp > pd.Timestamp {
		s.mu.Unlock()
		return false
	}
	s.prices[pd.Symbol] = pd
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(pd)
	}
	return true
}

// Seed loads samples without emitting notifications. Used to warm the
// store from a snapshot before any feed is live; Put semantics still apply
// so a seed never overwrites fresher data.
func (s *PriceStore) Seed(samples []domain.PriceData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pd := range samples {
		existing, ok := s.prices[pd.Symbol]
		if ok && existing.Timestamp > pd.Timestamp {
			continue
		}
		s.prices[pd.Symbol] = pd
	}
}

// Get returns the last-known sample for a symbol.
func (s *PriceStore) Get(symbol string) (domain.PriceData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pd, ok := s.prices[symbol]
	return pd, ok
}

// All returns every sample sorted by symbol for consistent ordering.
func (s *PriceStore) All() []domain.PriceData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PriceData, 0, len(s.prices))
	for _, pd := range s.prices {
		result = append(result, pd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// Len returns the number of symbols with a sample.
func (s *PriceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}
