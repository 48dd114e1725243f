package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	"brewpos/internal/log"
	"brewpos/internal/metrics"
)

type PaymentState string

const (
	StateIdle           PaymentState = "Idle"
	StateMethodSelected PaymentState = "MethodSelected"
	StateProcessing     PaymentState = "Processing"
	StateConfirmed      PaymentState = "Confirmed"
	StateCancelled      PaymentState = "Cancelled"
	StatePaused         PaymentState = "Paused"
	StateFailed         PaymentState = "Failed"
)

// CommitListener runs after a transaction record has been saved.
type CommitListener func(ctx context.Context, rec domain.TransactionRecord)

type PaymentControllerDeps struct {
	Planner   *Planner
	Committer *CommitExecutor
	Network   Connectivity
	Timer     StageTimer
	Session   domain.SessionContext
	Log       *log.Logger
	Metrics   *metrics.CheckoutMetrics
}

// PaymentStatus is what the UI renders and gates buttons on.
type PaymentStatus struct {
	SessionID         string               `json:"sessionId"`
	State             PaymentState         `json:"state"`
	StatusText        string               `json:"statusText"`
	Method            domain.PaymentMethod `json:"method,omitempty"`
	Total             decimal.Decimal      `json:"total"`
	AmountPaid        decimal.Decimal      `json:"amountPaid"`
	Change            decimal.Decimal      `json:"change"`
	CanConfirmPayment bool                 `json:"canConfirmPayment"`
	Processing        bool                 `json:"processing"`
	Stage             Stage                `json:"stage,omitempty"`
	StageIndex        int                  `json:"stageIndex"`
	StageCount        int                  `json:"stageCount"`
	TransactionID     int64                `json:"transactionId,omitempty"`
	Issues            []ShortageIssue      `json:"issues,omitempty"`
}

// PaymentController drives one terminal's checkout. ConfirmPayment is
// single-flight: a CAS flag plus a non-blocking semaphore, so a second
// concurrent call returns at once without side effects.
type PaymentController struct {
	deps PaymentControllerDeps

	processing atomic.Bool
	sem        *semaphore.Weighted

	mu          sync.Mutex
	sessionID   string
	lines       []domain.CartLine
	total       decimal.Decimal
	paid        decimal.Decimal
	method      domain.PaymentMethod
	state       PaymentState
	statusText  string
	stage       Stage
	stageIndex  int
	stageCount  int
	committing  bool
	cancelStage context.CancelFunc
	record      domain.TransactionRecord
	issues      []ShortageIssue
	listeners   []CommitListener
}

func NewPaymentController(deps PaymentControllerDeps) *PaymentController {
	if deps.Log == nil {
		deps.Log = log.Nop()
	}
	if deps.Timer == nil {
		deps.Timer = InstantTimer{}
	}
	return &PaymentController{
		deps:       deps,
		sem:        semaphore.NewWeighted(1),
		state:      StateIdle,
		statusText: "No payment in progress",
	}
}

// OnTransactionCommitted registers a post-commit callback.
func (c *PaymentController) OnTransactionCommitted(fn CommitListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// ShowPayment opens a new payment session for a cart.
func (c *PaymentController) ShowPayment(total decimal.Decimal, lines []domain.CartLine) error {
	if len(lines) == 0 {
		return apperr.New(apperr.CodeValidation, "cart is empty")
	}
	for _, l := range lines {
		if l.TotalQty() < 1 {
			return apperr.New(apperr.CodeValidation, "cart line has no quantity").
				WithDetails(map[string]any{"productId": l.ProductID})
		}
	}
	if total.IsNegative() {
		return apperr.New(apperr.CodeValidation, "total cannot be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busyLocked() {
		return apperr.New(apperr.CodeStateConflict, "a payment is in progress")
	}
	c.sessionID = uuid.NewString()
	c.lines = append([]domain.CartLine(nil), lines...)
	c.total = total
	c.paid = decimal.Zero
	c.method = ""
	c.state = StateIdle
	c.statusText = "Select a payment method"
	c.resetProgressLocked()
	c.record = domain.TransactionRecord{}
	return nil
}

func (c *PaymentController) SelectPaymentMethod(m domain.PaymentMethod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return apperr.New(apperr.CodeStateConflict, "no payment session")
	}
	switch c.state {
	case StateIdle, StateMethodSelected, StateFailed:
	default:
		return apperr.New(apperr.CodeStateConflict, "cannot change method while "+string(c.state))
	}
	c.method = m
	if m == domain.MethodCash {
		c.paid = decimal.Zero
		c.statusText = "Enter cash received"
	} else {
		c.paid = c.total
		c.statusText = "Ready to confirm " + string(m) + " payment"
	}
	c.state = StateMethodSelected
	c.issues = nil
	return nil
}

// AddCashAmount adds a tendered bill or coin to the cash received.
func (c *PaymentController) AddCashAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.New(apperr.CodeValidation, "amount must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cashEditableLocked(); err != nil {
		return err
	}
	c.paid = c.paid.Add(amount)
	return nil
}

// SetCashAmount replaces the cash received, e.g. after a typo.
func (c *PaymentController) SetCashAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.New(apperr.CodeValidation, "amount cannot be negative")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cashEditableLocked(); err != nil {
		return err
	}
	c.paid = amount
	return nil
}

func (c *PaymentController) cashEditableLocked() error {
	if c.method != domain.MethodCash {
		return apperr.New(apperr.CodeStateConflict, "cash amounts only apply to cash payments")
	}
	if c.state != StateMethodSelected && c.state != StateFailed {
		return apperr.New(apperr.CodeStateConflict, "cannot edit amount while "+string(c.state))
	}
	return nil
}

func (c *PaymentController) CanConfirmPayment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canConfirmLocked()
}

func (c *PaymentController) canConfirmLocked() bool {
	return !c.processing.Load() && c.confirmableLocked() == nil
}

func (c *PaymentController) confirmableLocked() error {
	switch c.state {
	case StateMethodSelected, StatePaused, StateFailed:
	default:
		return apperr.New(apperr.CodeStateConflict, "cannot confirm while "+string(c.state))
	}
	if c.method == "" {
		return apperr.New(apperr.CodeValidation, "select a payment method first")
	}
	if c.paid.LessThan(c.total) {
		return apperr.New(apperr.CodeValidation, "amount paid is less than the total").
			WithDetails(map[string]any{"total": c.total.StringFixed(2), "amountPaid": c.paid.StringFixed(2)})
	}
	return nil
}

func (c *PaymentController) busyLocked() bool {
	return c.processing.Load() || c.state == StateProcessing || c.state == StatePaused || c.committing
}

func (c *PaymentController) resetProgressLocked() {
	c.stage = ""
	c.stageIndex = 0
	c.stageCount = 0
	c.issues = nil
}

// ConfirmPayment runs pre-flight checks, the method's processing stages and,
// if nothing cancelled them, the commit. It returns the saved record; a
// record with a non-nil error means the sale was saved but inventory was only
// partially deducted.
func (c *PaymentController) ConfirmPayment(ctx context.Context) (domain.TransactionRecord, error) {
	if !c.processing.CompareAndSwap(false, true) {
		c.deps.Metrics.IncRejectedSubmit()
		return domain.TransactionRecord{}, apperr.New(apperr.CodeConcurrentSubmission, "payment is already being processed")
	}
	if !c.sem.TryAcquire(1) {
		c.processing.Store(false)
		c.deps.Metrics.IncRejectedSubmit()
		return domain.TransactionRecord{}, apperr.New(apperr.CodeConcurrentSubmission, "payment is already being processed")
	}
	defer func() {
		c.sem.Release(1)
		c.processing.Store(false)
	}()

	c.mu.Lock()
	err := c.confirmableLocked()
	sessionID := c.sessionID
	c.mu.Unlock()
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	if c.deps.Network != nil && !c.deps.Network.HasInternetConnection(ctx) {
		c.mu.Lock()
		c.statusText = "No internet connection. Check the network and retry."
		c.mu.Unlock()
		c.deps.Log.Warn("payment.offline", nil, map[string]any{"session_id": sessionID})
		return domain.TransactionRecord{}, apperr.New(apperr.CodeNetworkUnavailable, "no internet connection")
	}

	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.sessionID != sessionID {
		c.mu.Unlock()
		return domain.TransactionRecord{}, apperr.New(apperr.CodeStateConflict, "payment session changed")
	}
	if err := c.confirmableLocked(); err != nil {
		c.mu.Unlock()
		return domain.TransactionRecord{}, err
	}
	lines := append([]domain.CartLine(nil), c.lines...)
	method, total, paid := c.method, c.total, c.paid
	stages := StagesFor(method)
	c.state = StateProcessing
	c.statusText = "Checking stock"
	c.resetProgressLocked()
	c.stageCount = len(stages)
	c.cancelStage = cancel
	c.mu.Unlock()

	logger := c.deps.Log.With(map[string]any{"session_id": sessionID, "method": method})
	logger.Info("payment.processing", map[string]any{"total": total.StringFixed(2)})

	plan, err := c.deps.Planner.Plan(stageCtx, lines)
	if err != nil {
		if stageCtx.Err() != nil {
			return domain.TransactionRecord{}, c.pause(logger, stageCtx.Err())
		}
		if !c.fail("Could not check stock", nil) {
			return domain.TransactionRecord{}, c.pause(logger, context.Canceled)
		}
		logger.Error("payment.plan_failed", err, nil)
		return domain.TransactionRecord{}, apperr.Wrap(apperr.CodeInternal, err, "stock check failed")
	}
	if !plan.OK() {
		for _, is := range plan.Issues {
			c.deps.Metrics.IncStockIssue(string(is.Kind))
		}
		if !c.fail("Not enough stock", plan.Issues) {
			return domain.TransactionRecord{}, c.pause(logger, context.Canceled)
		}
		logger.Warn("payment.stock_issues", nil, map[string]any{"issues": len(plan.Issues)})
		return domain.TransactionRecord{}, StockError(plan.Issues)
	}

	for i, st := range stages {
		c.mu.Lock()
		if c.state != StateProcessing {
			c.mu.Unlock()
			return domain.TransactionRecord{}, c.pause(logger, context.Canceled)
		}
		c.stage, c.stageIndex, c.statusText = st, i+1, string(st)
		c.mu.Unlock()

		start := time.Now()
		err := c.deps.Timer.Wait(stageCtx, method, st)
		c.deps.Metrics.ObserveStage(string(method), string(st), time.Since(start))
		if err != nil {
			return domain.TransactionRecord{}, c.pause(logger, err)
		}
	}

	c.mu.Lock()
	if c.state != StateProcessing {
		c.mu.Unlock()
		return domain.TransactionRecord{}, c.pause(logger, context.Canceled)
	}
	c.committing = true
	c.cancelStage = nil
	c.statusText = "Saving transaction"
	c.mu.Unlock()

	// Cancellation stops at the commit boundary.
	commitCtx := context.WithoutCancel(ctx)
	rec, err := c.deps.Committer.Commit(commitCtx, CommitRequest{
		SessionID:  sessionID,
		Session:    c.deps.Session,
		Method:     method,
		Total:      total,
		AmountPaid: paid,
		Lines:      lines,
		Links:      plan.Links,
	})

	c.mu.Lock()
	c.committing = false
	if rec.ID == 0 {
		c.state = StateFailed
		c.statusText = "Payment could not be saved. Please retry."
		c.mu.Unlock()
		return domain.TransactionRecord{}, err
	}
	c.state = StateConfirmed
	c.record = rec
	c.statusText = fmt.Sprintf("Payment confirmed. Order #%d", rec.ID)
	if err != nil {
		c.statusText += " (inventory was not fully updated)"
	}
	listeners := append([]CommitListener(nil), c.listeners...)
	c.mu.Unlock()

	c.emit(commitCtx, logger, rec, listeners)
	return rec, err
}

// pause parks a session whose stages were interrupted. A session already
// moved on by CancelPayment keeps its state.
func (c *PaymentController) pause(logger *log.Logger, cause error) error {
	c.mu.Lock()
	if c.state == StateProcessing {
		c.state = StatePaused
		c.statusText = "Payment paused"
	}
	c.cancelStage = nil
	c.mu.Unlock()
	logger.Info("payment.paused", nil)
	return apperr.Wrap(apperr.CodeCancelled, cause, "payment cancelled before commit")
}

// fail marks a processing session as failed. It reports false when
// CancelPayment already paused the session, which then stays paused.
func (c *PaymentController) fail(text string, issues []ShortageIssue) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelStage = nil
	if c.state != StateProcessing {
		return false
	}
	c.state = StateFailed
	c.statusText = text
	c.issues = issues
	return true
}

func (c *PaymentController) emit(ctx context.Context, logger *log.Logger, rec domain.TransactionRecord, listeners []CommitListener) {
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("payment.listener_panic", fmt.Errorf("%v", r), nil)
				}
			}()
			fn(ctx, rec)
		}()
	}
}

// CancelPayment resets an idle session, pauses a processing one, and throws
// away a paused one.
func (c *PaymentController) CancelPayment() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.committing {
		return apperr.New(apperr.CodeStateConflict, "transaction is already being saved")
	}
	switch c.state {
	case StateProcessing:
		c.state = StatePaused
		c.statusText = "Payment paused"
		if c.cancelStage != nil {
			c.cancelStage()
		}
		c.deps.Log.Info("payment.cancel_requested", map[string]any{"session_id": c.sessionID})
	case StatePaused:
		c.state = StateCancelled
		c.statusText = "Payment cancelled"
		c.lines = nil
		c.total = decimal.Zero
		c.paid = decimal.Zero
		c.method = ""
		c.resetProgressLocked()
		c.deps.Log.Info("payment.cancelled", map[string]any{"session_id": c.sessionID})
	case StateConfirmed:
		return apperr.New(apperr.CodeStateConflict, "payment already confirmed")
	case StateCancelled:
	default:
		c.paid = decimal.Zero
		c.method = ""
		c.state = StateIdle
		c.statusText = "Select a payment method"
		c.resetProgressLocked()
	}
	return nil
}

// ResumePayment restarts a paused session's stages from the first one.
func (c *PaymentController) ResumePayment(ctx context.Context) (domain.TransactionRecord, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StatePaused {
		return domain.TransactionRecord{}, apperr.New(apperr.CodeStateConflict, "nothing to resume")
	}
	return c.ConfirmPayment(ctx)
}

func (c *PaymentController) Status() PaymentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	change := decimal.Zero
	if c.method == domain.MethodCash && c.paid.GreaterThan(c.total) {
		change = c.paid.Sub(c.total)
	}
	return PaymentStatus{
		SessionID:         c.sessionID,
		State:             c.state,
		StatusText:        c.statusText,
		Method:            c.method,
		Total:             c.total,
		AmountPaid:        c.paid,
		Change:            change,
		CanConfirmPayment: c.canConfirmLocked(),
		Processing:        c.processing.Load(),
		Stage:             c.stage,
		StageIndex:        c.stageIndex,
		StageCount:        c.stageCount,
		TransactionID:     c.record.ID,
		Issues:            append([]ShortageIssue(nil), c.issues...),
	}
}
