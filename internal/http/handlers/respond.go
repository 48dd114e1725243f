package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"brewpos/internal/apperr"
	applog "brewpos/internal/log"
)

type errorBody struct {
	Code      apperr.Code `json:"code"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
	Details   any         `json:"details,omitempty"`
}

// respondError maps a coded error to its HTTP status. Server-side failures
// only ever show the public message; the cause goes to the log.
func respondError(c *fiber.Ctx, l *applog.Logger, action string, err error) error {
	ae := apperr.As(err)
	if ae == nil {
		ae = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(ae.Code())
	body := errorBody{Code: ae.Code(), Retryable: meta.Retryable}

	rl := l.FromRequest(c)
	switch {
	case meta.HTTPStatus >= fiber.StatusInternalServerError:
		body.Message = meta.PublicMessage
		rl.Error(action, err, map[string]any{"code": ae.Code()})
	case ae.Code() == apperr.CodeValidation:
		body.Message = ae.Message()
		body.Details = ae.Details()
		rl.Security("validation.fail", map[string]any{"action": action, "details": ae.Details()})
	default:
		body.Message = ae.Message()
		body.Details = ae.Details()
		rl.Warn(action, err, map[string]any{"code": ae.Code()})
	}
	return c.Status(meta.HTTPStatus).JSON(fiber.Map{"error": body})
}

func badRequest(c *fiber.Ctx, l *applog.Logger, action string, err error) error {
	return respondError(c, l, action, apperr.Wrap(apperr.CodeValidation, err, "malformed request body"))
}

// ErrorHandler is the app-wide fallback: friendly message, no internals.
func ErrorHandler(l *applog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
			return c.Status(fe.Code).JSON(fiber.Map{"error": errorBody{Code: codeFor(fe.Code), Message: fe.Message}})
		}
		l.FromRequest(c).Error("server.error", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errorBody{
			Code:      apperr.CodeInternal,
			Message:   "Something went wrong. Please try again.",
			Retryable: true,
		}})
	}
}

func codeFor(status int) apperr.Code {
	switch status {
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case fiber.StatusConflict:
		return apperr.CodeStateConflict
	}
	return apperr.CodeValidation
}
