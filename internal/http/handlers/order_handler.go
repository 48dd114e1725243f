package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "brewpos/internal/log"
	"brewpos/internal/services"
	"brewpos/internal/validate"
)

type OrderHandler struct {
	Order *services.OrderService
	Log   *applog.Logger
}

// GET /api/v1/transactions
func (h *OrderHandler) List(c *fiber.Ctx) error {
	limit := validate.Limit(c.Query("limit"), 50, 200)
	recs, err := h.Order.Latest(c.UserContext(), limit)
	if err != nil {
		return respondError(c, h.Log, "transactions.list", err)
	}
	return c.JSON(fiber.Map{"transactions": recs})
}

// GET /api/v1/transactions/:id
func (h *OrderHandler) View(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		h.Log.FromRequest(c).Security("validation.fail", map[string]any{"field": "id"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": errorBody{Code: "NOT_FOUND", Message: "transaction not found"}})
	}
	r, err := h.Order.Receipt(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.Log, "transactions.view", err)
	}
	return c.JSON(r)
}
