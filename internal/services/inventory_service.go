package services

import (
	"context"
	"database/sql"
	"errors"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	"brewpos/internal/log"
	"brewpos/internal/repos"
)

type Availability string

const (
	InStock    Availability = "IN_STOCK"
	LowStock   Availability = "LOW_STOCK"
	OutOfStock Availability = "OUT_OF_STOCK"
)

// AvailabilityOf buckets an item by its reorder level.
func AvailabilityOf(it domain.InventoryItem) Availability {
	switch {
	case it.OnHandQty <= 0:
		return OutOfStock
	case it.LowStock():
		return LowStock
	}
	return InStock
}

type InventoryRow struct {
	domain.InventoryItem
	Status Availability `json:"status"`
}

type InventoryService struct {
	Inv *repos.InventoryRepo
	Log *log.Logger
}

func NewInventoryService(inv *repos.InventoryRepo, l *log.Logger) *InventoryService {
	if l == nil {
		l = log.Nop()
	}
	return &InventoryService{Inv: inv, Log: l}
}

func (s *InventoryService) List(ctx context.Context) ([]InventoryRow, error) {
	items, err := s.Inv.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]InventoryRow, 0, len(items))
	for _, it := range items {
		out = append(out, InventoryRow{InventoryItem: it, Status: AvailabilityOf(it)})
	}
	return out, nil
}

// SetQty records a stock count or delivery.
func (s *InventoryService) SetQty(ctx context.Context, id int64, qty float64) (InventoryRow, error) {
	before, err := s.Inv.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return InventoryRow{}, apperr.New(apperr.CodeNotFound, "inventory item not found")
	}
	if err != nil {
		return InventoryRow{}, err
	}
	if err := s.Inv.SetQty(ctx, id, qty); err != nil {
		return InventoryRow{}, err
	}
	after, err := s.Inv.Get(ctx, id)
	if err != nil {
		return InventoryRow{}, err
	}
	s.Log.Audit("inventory.qty_set", map[string]any{
		"item_id": id,
		"item":    after.Name,
		"from":    before.OnHandQty,
		"to":      after.OnHandQty,
		"unit":    after.BaseUnit,
	})
	return InventoryRow{InventoryItem: after, Status: AvailabilityOf(after)}, nil
}

// LowStockAlerts is a commit listener that logs every item at or below its
// reorder level once a sale has gone through.
func (s *InventoryService) LowStockAlerts() CommitListener {
	return func(ctx context.Context, rec domain.TransactionRecord) {
		items, err := s.Inv.ListAll(ctx)
		if err != nil {
			s.Log.Error("inventory.low_stock_check_failed", err, map[string]any{"transaction_id": rec.ID})
			return
		}
		for _, it := range items {
			if !it.LowStock() {
				continue
			}
			s.Log.Warn("inventory.low_stock", nil, map[string]any{
				"transaction_id": rec.ID,
				"item":           it.Name,
				"on_hand":        it.OnHandQty,
				"min":            it.MinQty,
				"unit":           it.BaseUnit,
			})
		}
	}
}
