package services

import (
	"brewpos/internal/domain"
	"brewpos/internal/units"
)

// ResolveAmount returns the per-serving amount and unit a link charges for
// one drink of the given size. Precedence:
//
//  1. the size's own amount, if > 0 (unit: size unit, else shared unit, else item unit)
//  2. the shared amount, if > 0 (unit: shared unit, else item unit)
//  3. one serving in the item's unit
func ResolveAmount(link domain.IngredientLink, size domain.Size) (float64, string) {
	if p, ok := link.PerSize[size]; ok && p.Amount > 0 {
		return p.Amount, firstUnit(p.Unit, link.Shared.Unit, link.ItemUnit)
	}
	if link.Shared.Amount > 0 {
		return link.Shared.Amount, firstUnit(link.Shared.Unit, link.ItemUnit)
	}
	return 1, units.Normalize(link.ItemUnit)
}

func firstUnit(candidates ...string) string {
	for _, u := range candidates {
		if n := units.Normalize(u); n != "" {
			return n
		}
	}
	return ""
}

// NormalizeAddons drops unselected addons and bumps a selected addon with no
// quantity up to one.
func NormalizeAddons(in []domain.AddonSelection) []domain.AddonSelection {
	out := make([]domain.AddonSelection, 0, len(in))
	for _, a := range in {
		if !a.Selected {
			continue
		}
		if a.Quantity < 1 {
			a.Quantity = 1
		}
		out = append(out, a)
	}
	return out
}
