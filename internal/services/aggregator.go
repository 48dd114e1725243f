package services

import (
	"sort"

	"brewpos/internal/domain"
	"brewpos/internal/units"
)

// Consumable item names charged automatically per drink sold.
const StrawItem = "Straw"

func CupItem(size domain.Size) string { return string(size) + " Cup" }

// Aggregator folds cart lines into one deduction per (item, size).
type Aggregator struct {
	// Consumables adds one size-matched cup and one straw per drink.
	Consumables bool
}

// Aggregate is the default aggregator with consumables on.
func Aggregate(lines []domain.CartLine, links []domain.IngredientLink) map[domain.DeductionKey]domain.DeductionEntry {
	return Aggregator{Consumables: true}.Aggregate(lines, links)
}

// Aggregate never touches inventory. links may cover several products; each
// line only uses the links carrying its ProductID.
func (a Aggregator) Aggregate(lines []domain.CartLine, links []domain.IngredientLink) map[domain.DeductionKey]domain.DeductionEntry {
	byProduct := map[int64][]domain.IngredientLink{}
	for _, l := range links {
		byProduct[l.ProductID] = append(byProduct[l.ProductID], l)
	}

	out := map[domain.DeductionKey]domain.DeductionEntry{}
	for _, line := range lines {
		productLinks := byProduct[line.ProductID]
		for _, size := range domain.Sizes {
			qty := line.Qty[size]
			if qty <= 0 {
				continue
			}
			for _, link := range productLinks {
				if link.Role != domain.RoleIngredient {
					continue
				}
				amount, unit := ResolveAmount(link, size)
				add(out, link, size, amount, unit, float64(qty))
			}
			for _, sel := range NormalizeAddons(line.Addons[size]) {
				for _, link := range productLinks {
					if link.Role != domain.RoleAddon || link.InventoryItemID != sel.InventoryItemID {
						continue
					}
					amount, unit := ResolveAmount(link, size)
					add(out, link, size, amount, unit, float64(sel.Quantity*qty))
				}
			}
			if a.Consumables {
				addCount(out, CupItem(size), size, float64(qty))
				addCount(out, StrawItem, size, float64(qty))
			}
		}
	}
	return out
}

func add(out map[domain.DeductionKey]domain.DeductionEntry, link domain.IngredientLink, size domain.Size, amount float64, unit string, multiplier float64) {
	base := units.BaseUnit(units.FamilyOf(link.ItemUnit))
	if base == "" {
		base = units.Normalize(link.ItemUnit)
	}
	raw := amount * multiplier
	converted := units.Convert(raw, unit, base)
	failed := raw > 0 && converted == 0

	key := domain.DeductionKey{ItemName: link.ItemName, Size: size}
	e, ok := out[key]
	if !ok {
		e = domain.DeductionEntry{ItemName: link.ItemName, Size: size, BaseUnit: base, OriginalUnit: unit}
	}
	if failed {
		e.ConversionFailed = true
	} else {
		e.ConvertedAmount += converted
	}
	if e.OriginalUnit == unit {
		e.OriginalAmount += raw
	}
	out[key] = e
}

func addCount(out map[domain.DeductionKey]domain.DeductionEntry, item string, size domain.Size, n float64) {
	key := domain.DeductionKey{ItemName: item, Size: size}
	e, ok := out[key]
	if !ok {
		e = domain.DeductionEntry{ItemName: item, Size: size, BaseUnit: units.Piece, OriginalUnit: units.Piece}
	}
	e.ConvertedAmount += n
	e.OriginalAmount += n
	out[key] = e
}

// Entries flattens a deduction map in item then size order.
func Entries(m map[domain.DeductionKey]domain.DeductionEntry) []domain.DeductionEntry {
	out := make([]domain.DeductionEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	rank := map[domain.Size]int{domain.SizeSmall: 0, domain.SizeMedium: 1, domain.SizeLarge: 2}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemName != out[j].ItemName {
			return out[i].ItemName < out[j].ItemName
		}
		return rank[out[i].Size] < rank[out[j].Size]
	})
	return out
}
