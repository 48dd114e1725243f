package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"brewpos/internal/domain"
)

type txKey struct{}

func withTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFrom(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok && tx != nil
}

// conn picks the transaction bound to ctx, falling back to the pool.
func conn(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db
}

// Store is the persistence capability the checkout engine consumes.
type Store struct {
	db           *sqlx.DB
	Inventory    *InventoryRepo
	Products     *ProductRepo
	Transactions *TransactionRepo
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		Inventory:    NewInventoryRepo(db),
		Products:     NewProductRepo(db),
		Transactions: NewTransactionRepo(db),
	}
}

// Atomic runs fn inside one SQLite transaction. Calls made with the ctx passed
// to fn join that transaction; nested Atomic calls reuse it.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.Inventory.ListAll(ctx)
}

// GetInventoryItemByName returns nil, nil when no item has that name.
func (s *Store) GetInventoryItemByName(ctx context.Context, name string) (*domain.InventoryItem, error) {
	item, err := s.Inventory.ByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetProductIngredientLinks(ctx context.Context, productID int64) ([]domain.IngredientLink, error) {
	return s.Products.Links(ctx, productID)
}

// DeductInventory applies one cart line's deductions all-or-nothing.
func (s *Store) DeductInventory(ctx context.Context, transactionID int64, entries []domain.DeductionEntry, productName string) (int64, error) {
	var rows int64
	err := s.Atomic(ctx, func(ctx context.Context) error {
		n, err := s.Inventory.Deduct(ctx, transactionID, entries, productName)
		rows = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return rows, nil
}

func (s *Store) SaveTransaction(ctx context.Context, rec domain.TransactionRecord, lines []domain.CartLine) (domain.TransactionRecord, error) {
	rec.LineItems = LineItems(lines)
	err := s.Atomic(ctx, func(ctx context.Context) error {
		id, err := s.Transactions.Create(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		for _, it := range rec.LineItems {
			if err := s.Transactions.InsertItem(ctx, id, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	return rec, nil
}

// LineItems flattens cart lines into one receipt row per product and size.
// Repeated lines for the same product and size (e.g. with different addons)
// collapse into one row with the quantities summed.
func LineItems(lines []domain.CartLine) []domain.TransactionLine {
	type rowKey struct {
		product int64
		size    domain.Size
	}
	var out []domain.TransactionLine
	seen := map[rowKey]int{}
	for _, l := range lines {
		for _, size := range domain.Sizes {
			q := l.Qty[size]
			if q <= 0 {
				continue
			}
			k := rowKey{l.ProductID, size}
			if i, ok := seen[k]; ok {
				out[i].Qty += q
				continue
			}
			seen[k] = len(out)
			out = append(out, domain.TransactionLine{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Size:        size,
				Qty:         q,
				UnitPrice:   l.UnitPrice[size],
			})
		}
	}
	return out
}
