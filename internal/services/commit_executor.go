package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	"brewpos/internal/idempotency"
	"brewpos/internal/log"
	"brewpos/internal/metrics"
)

// CommitRequest carries everything needed to persist one paid cart.
type CommitRequest struct {
	SessionID  string
	Session    domain.SessionContext
	Method     domain.PaymentMethod
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	Lines      []domain.CartLine
	Links      []domain.IngredientLink
}

type CommitOptions struct {
	// Atomic wraps the record and every line's deduction in one storage
	// transaction. Off means per-line best effort.
	Atomic      bool
	Claims      idempotency.Store
	ClaimTTL    time.Duration
	Aggregator  Aggregator
	Parallelism int
	Log         *log.Logger
	Metrics     *metrics.CheckoutMetrics
	Now         func() time.Time
}

// CommitExecutor saves the transaction record and applies inventory
// deductions line by line.
type CommitExecutor struct {
	store Store
	opts  CommitOptions
}

func NewCommitExecutor(store Store, opts CommitOptions) *CommitExecutor {
	if opts.Log == nil {
		opts.Log = log.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	return &CommitExecutor{store: store, opts: opts}
}

// Commit returns the saved record. In best-effort mode a non-nil error with a
// non-zero record means the sale was saved but some lines were not deducted.
func (c *CommitExecutor) Commit(ctx context.Context, req CommitRequest) (domain.TransactionRecord, error) {
	ctx, span := tracer.Start(ctx, "checkout.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", string(req.Method)),
		attribute.String("payment.session_id", req.SessionID),
		attribute.Int("cart.lines", len(req.Lines)),
		attribute.Bool("commit.atomic", c.opts.Atomic),
	)

	key := idempotency.Key("commit", req.SessionID)
	if err := c.claim(ctx, key); err != nil {
		span.SetStatus(codes.Error, "claim")
		c.opts.Metrics.IncCommit(string(req.Method), "rejected")
		return domain.TransactionRecord{}, err
	}

	rec := domain.TransactionRecord{
		SessionID:  req.SessionID,
		TerminalID: req.Session.TerminalID,
		CashierID:  req.Session.CashierID,
		CreatedAt:  c.opts.Now().UTC(),
		Total:      req.Total,
		AmountPaid: req.AmountPaid,
		Method:     req.Method,
	}

	var (
		saved domain.TransactionRecord
		err   error
	)
	atomicStore, canAtomic := c.store.(Atomicity)
	switch {
	case c.opts.Atomic && canAtomic:
		saved, err = c.commitAtomic(ctx, atomicStore, rec, req)
	default:
		if c.opts.Atomic {
			c.opts.Log.Warn("checkout.commit_atomic_unsupported", nil, nil)
		}
		saved, err = c.commitBestEffort(ctx, rec, req)
	}

	if saved.ID == 0 {
		c.release(ctx, key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "not saved")
		c.opts.Metrics.IncCommit(string(req.Method), "failed")
		c.opts.Log.Error("transaction.commit_failed", err, map[string]any{
			"session_id": req.SessionID,
			"method":     req.Method,
		})
		return domain.TransactionRecord{}, err
	}

	span.SetAttributes(attribute.Int64("transaction.id", saved.ID))
	outcome := "ok"
	if err != nil {
		outcome = "partial"
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial")
	}
	c.opts.Metrics.IncCommit(string(req.Method), outcome)
	c.opts.Log.Audit("transaction.committed", map[string]any{
		"transaction_id": saved.ID,
		"session_id":     saved.SessionID,
		"terminal_id":    saved.TerminalID,
		"cashier_id":     saved.CashierID,
		"method":         saved.Method,
		"total":          saved.Total.StringFixed(2),
		"amount_paid":    saved.AmountPaid.StringFixed(2),
		"outcome":        outcome,
	})
	return saved, err
}

// claim fails open when the claim store is unreachable: the local single-flight
// guard still holds and the SQLite store stays the source of truth.
func (c *CommitExecutor) claim(ctx context.Context, key string) error {
	if c.opts.Claims == nil {
		return nil
	}
	ok, err := c.opts.Claims.Claim(ctx, key, c.opts.ClaimTTL)
	if err != nil {
		c.opts.Log.Warn("checkout.claim_unavailable", err, map[string]any{"key": key})
		return nil
	}
	if !ok {
		return apperr.New(apperr.CodeConcurrentSubmission, "session already committed").
			WithDetails(map[string]any{"key": key})
	}
	return nil
}

func (c *CommitExecutor) release(ctx context.Context, key string) {
	if c.opts.Claims == nil {
		return
	}
	if err := c.opts.Claims.Release(ctx, key); err != nil {
		c.opts.Log.Warn("checkout.claim_release_failed", err, map[string]any{"key": key})
	}
}

func (c *CommitExecutor) commitBestEffort(ctx context.Context, rec domain.TransactionRecord, req CommitRequest) (domain.TransactionRecord, error) {
	saved, err := c.store.SaveTransaction(ctx, rec, req.Lines)
	if err != nil {
		return domain.TransactionRecord{}, apperr.Wrap(apperr.CodePersistence, err, "save transaction")
	}

	errs := make([]error, len(req.Lines))
	var g errgroup.Group
	g.SetLimit(c.opts.Parallelism)
	for i, line := range req.Lines {
		g.Go(func() error {
			if err := c.deductLine(ctx, saved.ID, line, req.Links); err != nil {
				errs[i] = err
				c.opts.Metrics.IncLineFailure(line.ProductName)
				c.opts.Log.Error("inventory.deduct_failed", err, map[string]any{
					"transaction_id": saved.ID,
					"product":        line.ProductName,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return saved, apperr.Wrap(apperr.CodePersistence, err, "inventory partially deducted").
			WithDetails(map[string]any{"transactionId": saved.ID, "failedLines": len(multierr.Errors(err))})
	}
	return saved, nil
}

func (c *CommitExecutor) commitAtomic(ctx context.Context, st Atomicity, rec domain.TransactionRecord, req CommitRequest) (domain.TransactionRecord, error) {
	var saved domain.TransactionRecord
	err := st.Atomic(ctx, func(ctx context.Context) error {
		var err error
		saved, err = c.store.SaveTransaction(ctx, rec, req.Lines)
		if err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		for _, line := range req.Lines {
			if err := c.deductLine(ctx, saved.ID, line, req.Links); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.TransactionRecord{}, apperr.Wrap(apperr.CodePersistence, err, "commit rolled back")
	}
	return saved, nil
}

func (c *CommitExecutor) deductLine(ctx context.Context, txID int64, line domain.CartLine, links []domain.IngredientLink) error {
	entries := Entries(c.opts.Aggregator.Aggregate([]domain.CartLine{line}, links))
	for _, e := range entries {
		if e.ConversionFailed {
			return apperr.New(apperr.CodeUnitIncompatible, "cannot convert "+e.ItemName+" to "+e.BaseUnit)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := c.store.DeductInventory(ctx, txID, entries, line.ProductName); err != nil {
		return fmt.Errorf("%s: %w", line.ProductName, err)
	}
	trace.SpanFromContext(ctx).AddEvent("line.deducted", trace.WithAttributes(
		attribute.String("product", line.ProductName),
		attribute.Int("entries", len(entries)),
	))
	return nil
}
