package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	"brewpos/internal/repos"
)

// Receipt is a saved sale with the deductions it caused.
type Receipt struct {
	domain.TransactionRecord
	Change     string               `json:"change"`
	Deductions []repos.DeductionRow `json:"deductions"`
}

// OrderService serves receipts and the sales list.
type OrderService struct {
	Orders *repos.TransactionRepo
	Inv    *repos.InventoryRepo
}

func NewOrderService(orders *repos.TransactionRepo, inv *repos.InventoryRepo) *OrderService {
	return &OrderService{Orders: orders, Inv: inv}
}

func (s *OrderService) Receipt(ctx context.Context, id int64) (Receipt, error) {
	rec, err := s.Orders.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, apperr.New(apperr.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return Receipt{}, err
	}
	ded, err := s.Inv.Deductions(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	change := rec.AmountPaid.Sub(rec.Total)
	if change.IsNegative() {
		change = decimal.Zero
	}
	return Receipt{TransactionRecord: rec, Change: change.StringFixed(2), Deductions: ded}, nil
}

func (s *OrderService) Latest(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	return s.Orders.ListLatest(ctx, limit)
}
