package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	"brewpos/internal/repos"
)

// CartItem is a cart line as the register sends it: no names, no prices.
type CartItem struct {
	ProductID int64                                   `json:"productId" validate:"required,gt=0"`
	Qty       map[domain.Size]int                     `json:"qty" validate:"required,min=1"`
	Addons    map[domain.Size][]domain.AddonSelection `json:"addons,omitempty"`
}

type CartService struct {
	Prods *repos.ProductRepo
}

func NewCartService(prods *repos.ProductRepo) *CartService {
	return &CartService{Prods: prods}
}

// Price turns register items into cart lines priced from the menu and
// returns the server-side total.
func (s *CartService) Price(ctx context.Context, items []CartItem) ([]domain.CartLine, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, apperr.New(apperr.CodeValidation, "cart is empty")
	}
	lines := make([]domain.CartLine, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		p, err := s.Prods.Get(ctx, it.ProductID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, decimal.Zero, apperr.New(apperr.CodeNotFound, fmt.Sprintf("product %d not found", it.ProductID))
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !p.Active {
			return nil, decimal.Zero, apperr.New(apperr.CodeValidation, p.Name+" is not on the menu")
		}

		addons, err := s.addonItems(ctx, p.ID)
		if err != nil {
			return nil, decimal.Zero, err
		}

		line := domain.CartLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Qty:         map[domain.Size]int{},
			Addons:      map[domain.Size][]domain.AddonSelection{},
			UnitPrice:   map[domain.Size]decimal.Decimal{},
		}
		for size, q := range it.Qty {
			if q < 0 {
				return nil, decimal.Zero, apperr.New(apperr.CodeValidation, "quantity cannot be negative")
			}
			if q == 0 {
				continue
			}
			price, ok := p.Price(size)
			if !ok {
				return nil, decimal.Zero, apperr.New(apperr.CodeValidation,
					fmt.Sprintf("%s is not sold in %s", p.Name, size))
			}
			line.Qty[size] = q
			line.UnitPrice[size] = price
			sel := NormalizeAddons(it.Addons[size])
			for _, a := range sel {
				if !addons[a.InventoryItemID] {
					return nil, decimal.Zero, apperr.New(apperr.CodeValidation,
						fmt.Sprintf("%s has no addon %d", p.Name, a.InventoryItemID))
				}
			}
			if len(sel) > 0 {
				line.Addons[size] = sel
			}
		}
		if line.TotalQty() < 1 {
			return nil, decimal.Zero, apperr.New(apperr.CodeValidation, p.Name+" has no quantity")
		}
		total = total.Add(line.Subtotal())
		lines = append(lines, line)
	}
	return lines, total, nil
}

// addonItems lists the inventory items a product offers as addons.
func (s *CartService) addonItems(ctx context.Context, productID int64) (map[int64]bool, error) {
	links, err := s.Prods.Links(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := map[int64]bool{}
	for _, l := range links {
		if l.Role == domain.RoleAddon {
			out[l.InventoryItemID] = true
		}
	}
	return out, nil
}
