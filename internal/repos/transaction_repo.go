package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"brewpos/internal/domain"
)

type TransactionRepo struct{ db *sqlx.DB }

func NewTransactionRepo(db *sqlx.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// transactionRow mirrors the transactions table; created_at is stored as
// RFC3339 text and parsed on the way out.
type transactionRow struct {
	ID         int64           `db:"id"`
	SessionID  string          `db:"session_id"`
	TerminalID string          `db:"terminal_id"`
	CashierID  string          `db:"cashier_id"`
	Total      decimal.Decimal `db:"total"`
	AmountPaid decimal.Decimal `db:"amount_paid"`
	Method     string          `db:"method"`
	CreatedAt  string          `db:"created_at"`
}

func (tr transactionRow) record() (domain.TransactionRecord, error) {
	ts, err := time.Parse(time.RFC3339Nano, tr.CreatedAt)
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("transaction %d created_at: %w", tr.ID, err)
	}
	return domain.TransactionRecord{
		ID:         tr.ID,
		SessionID:  tr.SessionID,
		TerminalID: tr.TerminalID,
		CashierID:  tr.CashierID,
		CreatedAt:  ts,
		Total:      tr.Total,
		AmountPaid: tr.AmountPaid,
		Method:     domain.PaymentMethod(tr.Method),
	}, nil
}

// Create inserts a transaction header and returns the id SQLite assigned.
func (r *TransactionRepo) Create(ctx context.Context, rec domain.TransactionRecord) (int64, error) {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO transactions
	    (session_id, terminal_id, cashier_id, total, amount_paid, method, created_at)
	  VALUES
	    (?,          ?,           ?,          ?,     ?,           ?,      ?)
	`, rec.SessionID, rec.TerminalID, rec.CashierID, rec.Total.StringFixed(2), rec.AmountPaid.StringFixed(2),
		string(rec.Method), created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertItem inserts a single receipt line.
func (r *TransactionRepo) InsertItem(ctx context.Context, transactionID int64, it domain.TransactionLine) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
	  INSERT INTO transaction_items(transaction_id, product_id, product_name, size, qty, unit_price)
	  VALUES(?, ?, ?, ?, ?, ?)
	`, transactionID, it.ProductID, it.ProductName, string(it.Size), it.Qty, it.UnitPrice.StringFixed(2))
	return err
}

// Get returns the transaction with its line items.
// If no row exists, it returns sql.ErrNoRows.
func (r *TransactionRepo) Get(ctx context.Context, id int64) (domain.TransactionRecord, error) {
	ex := conn(ctx, r.db)
	var row transactionRow
	if err := sqlx.GetContext(ctx, ex, &row, `
		SELECT id, session_id, terminal_id, cashier_id, total, amount_paid, method, created_at
		FROM transactions
		WHERE id = ?
	`, id); err != nil {
		return domain.TransactionRecord{}, err
	}
	rec, err := row.record()
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	if err := sqlx.SelectContext(ctx, ex, &rec.LineItems, `
		SELECT product_id, product_name, size, qty, unit_price
		FROM transaction_items
		WHERE transaction_id = ?
		ORDER BY product_name, CASE size WHEN 'Small' THEN 0 WHEN 'Medium' THEN 1 ELSE 2 END
	`, id); err != nil {
		return domain.TransactionRecord{}, err
	}
	return rec, nil
}

// ListLatest returns transaction headers newest first, without line items.
func (r *TransactionRepo) ListLatest(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, `
		SELECT id, session_id, terminal_id, cashier_id, total, amount_paid, method, created_at
		FROM transactions
		ORDER BY id DESC
		LIMIT ?
	`, limit); err != nil {
		return nil, err
	}
	out := make([]domain.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountBySession reports how many sales were saved for one payment session.
func (r *TransactionRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, conn(ctx, r.db), &n, `SELECT COUNT(*) FROM transactions WHERE session_id = ?`, sessionID)
	return n, err
}
