package netcheck

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Prober answers HasInternetConnection by issuing a HEAD request against a
// known endpoint. An empty URL means the terminal is always treated as online.
type Prober struct {
	URL     string
	Timeout time.Duration
}

func NewProber(url string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{URL: url, Timeout: timeout}
}

func (p *Prober) HasInternetConnection(ctx context.Context) bool {
	if p == nil || p.URL == "" {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	timeout := p.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return false
	}
	agent := fiber.Head(p.URL)
	agent.Timeout(timeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return false
	}
	return code > 0 && code < fiber.StatusInternalServerError
}

// Static is a fixed answer, handy for kiosks without an uplink and for tests.
type Static bool

func (s Static) HasInternetConnection(context.Context) bool { return bool(s) }
