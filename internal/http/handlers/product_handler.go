package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"brewpos/internal/domain"
	applog "brewpos/internal/log"
	"brewpos/internal/repos"
)

type ProductHandler struct {
	Prods *repos.ProductRepo
	Log   *applog.Logger
}

type menuEntry struct {
	ID       int64                           `json:"id"`
	Name     string                          `json:"name"`
	Category string                          `json:"category"`
	Prices   map[domain.Size]decimal.Decimal `json:"prices"`
}

// GET /api/v1/products lists the menu with the sizes each drink is sold in.
func (h *ProductHandler) Menu(c *fiber.Ctx) error {
	prods, err := h.Prods.List(c.UserContext())
	if err != nil {
		return respondError(c, h.Log, "products.list", err)
	}
	out := make([]menuEntry, 0, len(prods))
	for _, p := range prods {
		e := menuEntry{ID: p.ID, Name: p.Name, Category: p.Category, Prices: map[domain.Size]decimal.Decimal{}}
		for _, s := range domain.Sizes {
			if price, ok := p.Price(s); ok {
				e.Prices[s] = price
			}
		}
		out = append(out, e)
	}
	return c.JSON(fiber.Map{"products": out})
}
