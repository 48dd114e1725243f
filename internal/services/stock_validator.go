package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	"brewpos/internal/units"
)

type IssueKind string

const (
	IssueInsufficient     IssueKind = "insufficient"
	IssueUnitIncompatible IssueKind = "unit_incompatible"
	IssueMissing          IssueKind = "missing"
)

type ShortageIssue struct {
	ItemName  string    `json:"itemName"`
	Kind      IssueKind `json:"kind"`
	Required  float64   `json:"required"`
	OnHand    float64   `json:"onHand"`
	Shortfall float64   `json:"shortfall"`
	Unit      string    `json:"unit"`
}

func (i ShortageIssue) String() string {
	switch i.Kind {
	case IssueUnitIncompatible:
		return fmt.Sprintf("%s: recipe unit cannot be converted to %s", i.ItemName, i.Unit)
	case IssueMissing:
		return fmt.Sprintf("%s: not stocked", i.ItemName)
	}
	return fmt.Sprintf("%s: need %g %s, have %g %s", i.ItemName, i.Required, i.Unit, i.OnHand, i.Unit)
}

// StockValidator compares aggregated demand with live on-hand quantities.
// It only reads.
type StockValidator struct {
	store Store
}

func NewStockValidator(store Store) *StockValidator {
	return &StockValidator{store: store}
}

type demand struct {
	name     string
	unit     string
	required float64
	failed   bool
}

func (v *StockValidator) Validate(ctx context.Context, deductions map[domain.DeductionKey]domain.DeductionEntry) ([]ShortageIssue, error) {
	if len(deductions) == 0 {
		return nil, nil
	}
	items, err := v.store.GetInventoryItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	stock := make(map[string]domain.InventoryItem, len(items))
	for _, it := range items {
		stock[foldName(it.Name)] = it
	}

	// Re-sum across sizes per item.
	totals := map[string]*demand{}
	for _, e := range deductions {
		k := foldName(e.ItemName)
		d, ok := totals[k]
		if !ok {
			d = &demand{name: e.ItemName, unit: e.BaseUnit}
			totals[k] = d
		}
		if e.ConversionFailed {
			d.failed = true
			continue
		}
		d.required += e.ConvertedAmount
	}

	var issues []ShortageIssue
	for k, d := range totals {
		it, ok := stock[k]
		switch {
		case d.failed:
			unit := d.unit
			if ok {
				unit = it.BaseUnit
			}
			issues = append(issues, ShortageIssue{ItemName: d.name, Kind: IssueUnitIncompatible, Unit: unit})
		case !ok:
			issues = append(issues, ShortageIssue{ItemName: d.name, Kind: IssueMissing, Required: d.required, Shortfall: d.required, Unit: d.unit})
		case !units.AreCompatibleUnits(d.unit, it.BaseUnit):
			issues = append(issues, ShortageIssue{ItemName: it.Name, Kind: IssueUnitIncompatible, Required: d.required, OnHand: it.OnHandQty, Unit: it.BaseUnit})
		default:
			need := units.Convert(d.required, d.unit, it.BaseUnit)
			if need-it.OnHandQty > domain.QtyTolerance {
				issues = append(issues, ShortageIssue{
					ItemName:  it.Name,
					Kind:      IssueInsufficient,
					Required:  need,
					OnHand:    it.OnHandQty,
					Shortfall: need - it.OnHandQty,
					Unit:      it.BaseUnit,
				})
			}
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ItemName < issues[j].ItemName })
	return issues, nil
}

// StockError turns validation issues into a coded error. Unit problems win
// over shortages since restocking cannot fix them.
func StockError(issues []ShortageIssue) error {
	if len(issues) == 0 {
		return nil
	}
	for _, i := range issues {
		if i.Kind == IssueUnitIncompatible {
			return apperr.New(apperr.CodeUnitIncompatible, i.String()).WithDetails(issues)
		}
	}
	msgs := make([]string, 0, len(issues))
	for _, i := range issues {
		msgs = append(msgs, i.String())
	}
	return apperr.New(apperr.CodeInsufficientStock, strings.Join(msgs, "; ")).WithDetails(issues)
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
