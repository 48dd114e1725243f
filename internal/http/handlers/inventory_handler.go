package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "brewpos/internal/log"
	"brewpos/internal/services"
	"brewpos/internal/validate"
)

type InventoryHandler struct {
	Inv     *services.InventoryService
	Planner *services.Planner
	Cart    *services.CartService
	Log     *applog.Logger
}

// GET /api/v1/inventory
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	rows, err := h.Inv.List(c.UserContext())
	if err != nil {
		return respondError(c, h.Log, "inventory.list", err)
	}
	return c.JSON(fiber.Map{"items": rows})
}

type setQtyRequest struct {
	OnHandQty *float64 `json:"onHandQty" validate:"required,gte=0"`
}

// PUT /api/v1/inventory/:id
func (h *InventoryHandler) SetQty(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		h.Log.FromRequest(c).Security("validation.fail", map[string]any{"field": "id"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": errorBody{Code: "VALIDATION_ERROR", Message: "invalid item id"}})
	}
	var req setQtyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, h.Log, "inventory.set", err)
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, h.Log, "inventory.set", err)
	}
	row, err := h.Inv.SetQty(c.UserContext(), id, *req.OnHandQty)
	if err != nil {
		return respondError(c, h.Log, "inventory.set", err)
	}
	return c.JSON(row)
}

type stockCheckRequest struct {
	Items []services.CartItem `json:"items" validate:"required,min=1,dive"`
}

// POST /api/v1/stock/check validates a cart against stock without paying.
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	var req stockCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, h.Log, "stock.check", err)
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, h.Log, "stock.check", err)
	}
	lines, total, err := h.Cart.Price(c.UserContext(), req.Items)
	if err != nil {
		return respondError(c, h.Log, "stock.check", err)
	}
	plan, err := h.Planner.Plan(c.UserContext(), lines)
	if err != nil {
		return respondError(c, h.Log, "stock.check", err)
	}
	return c.JSON(fiber.Map{
		"ok":         plan.OK(),
		"total":      total,
		"issues":     plan.Issues,
		"deductions": services.Entries(plan.Deductions),
	})
}
