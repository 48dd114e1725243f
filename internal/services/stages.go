package services

import (
	"context"
	"time"

	"brewpos/internal/domain"
)

// Stage is one named step of payment processing shown to the cashier.
type Stage string

// StagesFor lists the processing steps of a payment method in order.
func StagesFor(m domain.PaymentMethod) []Stage {
	switch m {
	case domain.MethodGCash:
		return []Stage{
			"Connecting to GCash",
			"Waiting for customer authorization",
			"Verifying payment",
			"Finalizing transaction",
		}
	case domain.MethodBank:
		return []Stage{
			"Connecting to bank",
			"Authorizing card",
			"Verifying funds",
			"Processing payment",
			"Finalizing transaction",
		}
	}
	return []Stage{"Processing cash payment"}
}

// StageTimer waits out one stage. It must return ctx.Err() as soon as ctx is
// cancelled.
type StageTimer interface {
	Wait(ctx context.Context, m domain.PaymentMethod, s Stage) error
}

// ClockTimer sleeps a fixed duration per stage; cash gets its own delay.
type ClockTimer struct {
	Cash  time.Duration
	Other time.Duration
}

func (t ClockTimer) Wait(ctx context.Context, m domain.PaymentMethod, _ Stage) error {
	d := t.Other
	if m == domain.MethodCash {
		d = t.Cash
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// InstantTimer completes every stage immediately unless ctx is already done.
type InstantTimer struct{}

func (InstantTimer) Wait(ctx context.Context, _ domain.PaymentMethod, _ Stage) error {
	return ctx.Err()
}
