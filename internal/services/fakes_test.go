package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"brewpos/internal/domain"
)

// memStore is an in-process Store for unit tests.
type memStore struct {
	mu       sync.Mutex
	items    map[string]*domain.InventoryItem
	links    map[int64][]domain.IngredientLink
	saved    []domain.TransactionRecord
	deducted map[string][]domain.DeductionEntry
	failFor  map[string]error
	saveErr  error
}

func newMemStore(items ...domain.InventoryItem) *memStore {
	s := &memStore{
		items:    map[string]*domain.InventoryItem{},
		links:    map[int64][]domain.IngredientLink{},
		deducted: map[string][]domain.DeductionEntry{},
		failFor:  map[string]error{},
	}
	for i := range items {
		it := items[i]
		s.items[strings.ToLower(it.Name)] = &it
	}
	return s
}

func (s *memStore) GetInventoryItems(context.Context) ([]domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.InventoryItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, *it)
	}
	return out, nil
}

func (s *memStore) GetInventoryItemByName(_ context.Context, name string) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (s *memStore) GetProductIngredientLinks(_ context.Context, productID int64) ([]domain.IngredientLink, error) {
	return s.links[productID], nil
}

func (s *memStore) DeductInventory(_ context.Context, _ int64, entries []domain.DeductionEntry, productName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[productName]; err != nil {
		return 0, err
	}
	for _, e := range entries {
		it, ok := s.items[strings.ToLower(e.ItemName)]
		if !ok {
			return 0, errors.New("missing " + e.ItemName)
		}
		it.OnHandQty -= e.ConvertedAmount
	}
	s.deducted[productName] = append(s.deducted[productName], entries...)
	return int64(len(entries)), nil
}

func (s *memStore) SaveTransaction(_ context.Context, rec domain.TransactionRecord, _ []domain.CartLine) (domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return domain.TransactionRecord{}, s.saveErr
	}
	rec.ID = int64(len(s.saved) + 1)
	s.saved = append(s.saved, rec)
	return rec, nil
}

func (s *memStore) onHand(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[strings.ToLower(name)].OnHandQty
}
