package handlers

import (
	"github.com/jmoiron/sqlx"

	"brewpos/internal/config"
	"brewpos/internal/idempotency"
	applog "brewpos/internal/log"
	"brewpos/internal/metrics"
	"brewpos/internal/repos"
	"brewpos/internal/services"
)

// Options carries the collaborators main builds from config. Nil fields
// fall back to in-process defaults.
type Options struct {
	Config  config.Config
	Log     *applog.Logger
	Metrics *metrics.CheckoutMetrics
	Claims  idempotency.Store
	Network services.Connectivity
	Timer   services.StageTimer
}

type Deps struct {
	PaymentHandler   *PaymentHandler
	InventoryHandler *InventoryHandler
	OrderHandler     *OrderHandler
	ProductHandler   *ProductHandler

	Controller *services.PaymentController
}

func NewDeps(db *sqlx.DB, opts Options) *Deps {
	if opts.Log == nil {
		opts.Log = applog.Nop()
	}
	if opts.Claims == nil {
		opts.Claims = idempotency.NewMemoryStore()
	}
	co := opts.Config.Checkout

	store := repos.NewStore(db)
	agg := services.Aggregator{Consumables: co.Consumables}
	planner := services.NewPlanner(store, agg)
	committer := services.NewCommitExecutor(store, services.CommitOptions{
		Atomic:     co.AtomicCommit,
		Claims:     opts.Claims,
		ClaimTTL:   co.IdempotencyTTL,
		Aggregator: agg,
		Log:        opts.Log,
		Metrics:    opts.Metrics,
	})
	ctrl := services.NewPaymentController(services.PaymentControllerDeps{
		Planner:   planner,
		Committer: committer,
		Network:   opts.Network,
		Timer:     opts.Timer,
		Session:   co.SessionContext(),
		Log:       opts.Log,
		Metrics:   opts.Metrics,
	})

	cartSvc := services.NewCartService(store.Products)
	invSvc := services.NewInventoryService(store.Inventory, opts.Log)
	orderSvc := services.NewOrderService(store.Transactions, store.Inventory)
	ctrl.OnTransactionCommitted(invSvc.LowStockAlerts())

	return &Deps{
		PaymentHandler:   &PaymentHandler{Ctrl: ctrl, Cart: cartSvc, Log: opts.Log},
		InventoryHandler: &InventoryHandler{Inv: invSvc, Planner: planner, Cart: cartSvc, Log: opts.Log},
		OrderHandler:     &OrderHandler{Order: orderSvc, Log: opts.Log},
		ProductHandler:   &ProductHandler{Prods: store.Products, Log: opts.Log},
		Controller:       ctrl,
	}
}
