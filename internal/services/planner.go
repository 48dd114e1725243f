package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"brewpos/internal/domain"
)

var tracer = otel.Tracer("brewpos/services")

// Plan is the fulfillment picture for a cart: what will be deducted and what
// stands in the way.
type Plan struct {
	Links      []domain.IngredientLink                       `json:"-"`
	Deductions map[domain.DeductionKey]domain.DeductionEntry `json:"-"`
	Issues     []ShortageIssue                               `json:"issues"`
}

// OK reports whether the plan can be committed.
func (p Plan) OK() bool { return len(p.Issues) == 0 }

// Planner resolves, aggregates and validates a cart in one pass. The payment
// controller and the speculative stock check share it.
type Planner struct {
	store      Store
	aggregator Aggregator
	validator  *StockValidator
}

func NewPlanner(store Store, agg Aggregator) *Planner {
	return &Planner{store: store, aggregator: agg, validator: NewStockValidator(store)}
}

func (p *Planner) Aggregator() Aggregator { return p.aggregator }

func (p *Planner) Plan(ctx context.Context, lines []domain.CartLine) (Plan, error) {
	ctx, span := tracer.Start(ctx, "checkout.plan")
	defer span.End()
	span.SetAttributes(attribute.Int("cart.lines", len(lines)))

	links, err := p.Links(ctx, lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load links")
		return Plan{}, err
	}
	deductions := p.aggregator.Aggregate(lines, links)
	issues, err := p.validator.Validate(ctx, deductions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validate")
		return Plan{}, err
	}
	span.SetAttributes(
		attribute.Int("plan.deductions", len(deductions)),
		attribute.Int("plan.issues", len(issues)),
	)
	return Plan{Links: links, Deductions: deductions, Issues: issues}, nil
}

// Links loads the recipe links of every distinct product in the cart.
func (p *Planner) Links(ctx context.Context, lines []domain.CartLine) ([]domain.IngredientLink, error) {
	seen := map[int64]bool{}
	var links []domain.IngredientLink
	for _, l := range lines {
		if seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		pl, err := p.store.GetProductIngredientLinks(ctx, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("links for product %d: %w", l.ProductID, err)
		}
		links = append(links, pl...)
	}
	return links, nil
}
