package repos

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
)

type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

const inventoryCols = `id, name, category, on_hand_qty, min_qty, max_qty, base_unit, COALESCE(updated_at,'') AS updated_at`

// ListAll returns every inventory item ordered by name (for /api/v1/inventory).
func (r *InventoryRepo) ListAll(ctx context.Context) ([]domain.InventoryItem, error) {
	var rows []domain.InventoryItem
	err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, `
		SELECT `+inventoryCols+`
		FROM inventory_items
		ORDER BY name
	`)
	return rows, err
}

// ByName looks an item up case-insensitively.
// If no row exists, it returns sql.ErrNoRows from sqlx.Get.
func (r *InventoryRepo) ByName(ctx context.Context, name string) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &it, `
		SELECT `+inventoryCols+`
		FROM inventory_items
		WHERE LOWER(name) = LOWER(?)
	`, strings.TrimSpace(name))
	return it, err
}

func (r *InventoryRepo) Get(ctx context.Context, id int64) (domain.InventoryItem, error) {
	var it domain.InventoryItem
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &it, `
		SELECT `+inventoryCols+`
		FROM inventory_items
		WHERE id = ?
	`, id)
	return it, err
}

// SetQty overwrites the on-hand quantity of an item (stock count, delivery).
func (r *InventoryRepo) SetQty(ctx context.Context, id int64, qty float64) error {
	if qty < 0 {
		return apperr.New(apperr.CodeValidation, "quantity cannot be negative")
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, `
		UPDATE inventory_items
		SET on_hand_qty = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.CodeNotFound, "inventory item not found")
	}
	return nil
}

// Deduct subtracts the entries from stock and records them in the deduction
// log. Entries naming the same item are summed first so each item sees a
// single conditional UPDATE. It must run inside a transaction for the
// all-or-nothing guarantee; Store.DeductInventory takes care of that.
func (r *InventoryRepo) Deduct(ctx context.Context, transactionID int64, entries []domain.DeductionEntry, productName string) (int64, error) {
	ex := conn(ctx, r.db)

	totals := map[string]float64{}
	display := map[string]string{}
	for _, e := range entries {
		if e.ConversionFailed || e.ConvertedAmount <= 0 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(e.ItemName))
		totals[k] += e.ConvertedAmount
		if _, ok := display[k]; !ok {
			display[k] = e.ItemName
		}
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var affected int64
	for _, k := range keys {
		amount := totals[k]
		res, err := ex.ExecContext(ctx, `
			UPDATE inventory_items
			SET on_hand_qty = MAX(on_hand_qty - ?, 0), updated_at = CURRENT_TIMESTAMP
			WHERE LOWER(name) = ? AND on_hand_qty >= ?
		`, amount, k, amount-domain.QtyTolerance)
		if err != nil {
			return affected, err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return affected, r.deductMiss(ctx, ex, display[k], amount)
		}
		affected += n
	}

	for _, e := range entries {
		if e.ConversionFailed || e.ConvertedAmount <= 0 {
			continue
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO inventory_deductions
			  (transaction_id, product_name, item_name, size, amount, base_unit, original_amount, original_unit)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, transactionID, productName, e.ItemName, string(e.Size), e.ConvertedAmount, e.BaseUnit, e.OriginalAmount, e.OriginalUnit); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

func (r *InventoryRepo) deductMiss(ctx context.Context, ex sqlx.ExtContext, name string, amount float64) error {
	var onHand float64
	err := sqlx.GetContext(ctx, ex, &onHand, `SELECT on_hand_qty FROM inventory_items WHERE LOWER(name) = LOWER(?)`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.CodeNotFound, "inventory item not found").
			WithDetails(map[string]any{"item": name})
	}
	if err != nil {
		return err
	}
	return apperr.New(apperr.CodeInsufficientStock, "insufficient stock for "+name).
		WithDetails(map[string]any{"item": name, "required": amount, "onHand": onHand})
}

// Deductions returns the log rows written for a transaction.
func (r *InventoryRepo) Deductions(ctx context.Context, transactionID int64) ([]DeductionRow, error) {
	var out []DeductionRow
	err := sqlx.SelectContext(ctx, conn(ctx, r.db), &out, `
		SELECT transaction_id, product_name, item_name, size, amount, base_unit, original_amount, original_unit
		FROM inventory_deductions
		WHERE transaction_id = ?
		ORDER BY id
	`, transactionID)
	return out, err
}

type DeductionRow struct {
	TransactionID  int64   `db:"transaction_id" json:"transactionId"`
	ProductName    string  `db:"product_name" json:"productName"`
	ItemName       string  `db:"item_name" json:"itemName"`
	Size           string  `db:"size" json:"size"`
	Amount         float64 `db:"amount" json:"amount"`
	BaseUnit       string  `db:"base_unit" json:"baseUnit"`
	OriginalAmount float64 `db:"original_amount" json:"originalAmount"`
	OriginalUnit   string  `db:"original_unit" json:"originalUnit"`
}
