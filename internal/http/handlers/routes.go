package handlers

import "github.com/gofiber/fiber/v2"

// Register mounts the JSON API. confirm guards payment submission; pass nil
// to leave it unthrottled.
func Register(r fiber.Router, d *Deps, confirm fiber.Handler) {
	api := r.Group("/api/v1")

	api.Get("/products", d.ProductHandler.Menu)

	pay := api.Group("/payment")
	pay.Get("/", d.PaymentHandler.Status)
	pay.Post("/", d.PaymentHandler.Show)
	pay.Post("/method", d.PaymentHandler.SelectMethod)
	pay.Post("/cash", d.PaymentHandler.Cash)
	if confirm != nil {
		pay.Post("/confirm", confirm, d.PaymentHandler.Confirm)
	} else {
		pay.Post("/confirm", d.PaymentHandler.Confirm)
	}
	pay.Post("/cancel", d.PaymentHandler.Cancel)
	pay.Post("/resume", d.PaymentHandler.Resume)

	api.Post("/stock/check", d.InventoryHandler.Check)
	api.Get("/inventory", d.InventoryHandler.List)
	api.Put("/inventory/:id", d.InventoryHandler.SetQty)

	api.Get("/transactions", d.OrderHandler.List)
	api.Get("/transactions/:id", d.OrderHandler.View)
}
