package handlers

import (
	"github.com/gofiber/fiber/v2"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
	applog "brewpos/internal/log"
	"brewpos/internal/services"
	"brewpos/internal/validate"
)

type PaymentHandler struct {
	Ctrl *services.PaymentController
	Cart *services.CartService
	Log  *applog.Logger
}

type showPaymentRequest struct {
	Items []services.CartItem `json:"items" validate:"required,min=1,dive"`
	// ClientTotal is what the register displayed; the server total wins.
	ClientTotal string `json:"clientTotal" validate:"omitempty,money"`
}

// POST /api/v1/payment
func (h *PaymentHandler) Show(c *fiber.Ctx) error {
	var req showPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, h.Log, "payment.show", err)
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, h.Log, "payment.show", err)
	}
	lines, total, err := h.Cart.Price(c.UserContext(), req.Items)
	if err != nil {
		return respondError(c, h.Log, "payment.show", err)
	}
	if req.ClientTotal != "" {
		client, _ := validate.Amount(req.ClientTotal)
		h.Log.FromRequest(c).Audit("payment.total_check", map[string]any{
			"server_total": total.StringFixed(2),
			"client_total": client.StringFixed(2),
			"mismatch":     !client.Equal(total),
		})
	}
	if err := h.Ctrl.ShowPayment(total, lines); err != nil {
		return respondError(c, h.Log, "payment.show", err)
	}
	st := h.Ctrl.Status()
	h.Log.FromRequest(c).Info("payment.show", map[string]any{
		"session_id": st.SessionID,
		"total":      total.StringFixed(2),
		"lines":      len(lines),
	})
	return c.Status(fiber.StatusCreated).JSON(st)
}

type methodRequest struct {
	Method string `json:"method" validate:"required,method"`
}

// POST /api/v1/payment/method
func (h *PaymentHandler) SelectMethod(c *fiber.Ctx) error {
	var req methodRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, h.Log, "payment.method", err)
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, h.Log, "payment.method", err)
	}
	m, _ := domain.ParsePaymentMethod(req.Method)
	if err := h.Ctrl.SelectPaymentMethod(m); err != nil {
		return respondError(c, h.Log, "payment.method", err)
	}
	return c.JSON(h.Ctrl.Status())
}

type cashRequest struct {
	Amount string `json:"amount" validate:"required,money"`
	Mode   string `json:"mode" validate:"omitempty,oneof=add set"`
}

// POST /api/v1/payment/cash
func (h *PaymentHandler) Cash(c *fiber.Ctx) error {
	var req cashRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, h.Log, "payment.cash", err)
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, h.Log, "payment.cash", err)
	}
	amount, _ := validate.Amount(req.Amount)
	var err error
	if req.Mode == "set" {
		err = h.Ctrl.SetCashAmount(amount)
	} else {
		err = h.Ctrl.AddCashAmount(amount)
	}
	if err != nil {
		return respondError(c, h.Log, "payment.cash", err)
	}
	return c.JSON(h.Ctrl.Status())
}

// POST /api/v1/payment/confirm
func (h *PaymentHandler) Confirm(c *fiber.Ctx) error {
	rec, err := h.Ctrl.ConfirmPayment(c.UserContext())
	return h.confirmed(c, "payment.confirm", rec, err)
}

// POST /api/v1/payment/resume
func (h *PaymentHandler) Resume(c *fiber.Ctx) error {
	rec, err := h.Ctrl.ResumePayment(c.UserContext())
	return h.confirmed(c, "payment.resume", rec, err)
}

func (h *PaymentHandler) confirmed(c *fiber.Ctx, action string, rec domain.TransactionRecord, err error) error {
	if rec.ID == 0 {
		if apperr.IsCode(err, apperr.CodeCancelled) {
			return c.JSON(fiber.Map{"status": h.Ctrl.Status(), "cancelled": true})
		}
		return respondError(c, h.Log, action, err)
	}
	body := fiber.Map{"transaction": rec, "status": h.Ctrl.Status()}
	if err != nil {
		h.Log.FromRequest(c).Error(action+".partial", err, map[string]any{"transaction_id": rec.ID})
		body["warning"] = apperr.MetadataFor(apperr.CodePersistence).PublicMessage
	}
	return c.JSON(body)
}

// POST /api/v1/payment/cancel
func (h *PaymentHandler) Cancel(c *fiber.Ctx) error {
	if err := h.Ctrl.CancelPayment(); err != nil {
		return respondError(c, h.Log, "payment.cancel", err)
	}
	st := h.Ctrl.Status()
	h.Log.FromRequest(c).Audit("payment.cancel", map[string]any{"session_id": st.SessionID, "state": st.State})
	return c.JSON(st)
}

// GET /api/v1/payment
func (h *PaymentHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.Ctrl.Status())
}
