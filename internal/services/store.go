package services

import (
	"context"

	"brewpos/internal/domain"
)

// Store is the persistence capability the checkout engine calls. repos.Store
// is the SQLite implementation.
type Store interface {
	GetInventoryItems(ctx context.Context) ([]domain.InventoryItem, error)
	// GetInventoryItemByName returns nil, nil when the item does not exist.
	GetInventoryItemByName(ctx context.Context, name string) (*domain.InventoryItem, error)
	GetProductIngredientLinks(ctx context.Context, productID int64) ([]domain.IngredientLink, error)
	DeductInventory(ctx context.Context, transactionID int64, entries []domain.DeductionEntry, productName string) (int64, error)
	SaveTransaction(ctx context.Context, rec domain.TransactionRecord, lines []domain.CartLine) (domain.TransactionRecord, error)
}

// Atomicity is implemented by stores that can run several calls inside one
// storage transaction. Calls made with the ctx handed to fn join it.
type Atomicity interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// Connectivity answers whether the terminal can reach the outside world.
type Connectivity interface {
	HasInternetConnection(ctx context.Context) bool
}
