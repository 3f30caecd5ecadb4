// Package payment defines the capture call made during order settlement.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/shopcache/model"
)

var ErrDeclined = errors.New("payment: capture declined")

// StatusCompleted is the only status a capture may settle with.
const StatusCompleted = "COMPLETED"

type Request struct {
	OrderID string
	Total   float64
	// Confirmation is the payload the payer's checkout returned.
	Confirmation model.PaymentResult
}

// Capturer confirms payment for an order. Any error fails the settlement.
type Capturer interface {
	Capture(ctx context.Context, req Request) (model.PaymentResult, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context, req Request) (model.PaymentResult, error)

func (f CapturerFunc) Capture(ctx context.Context, req Request) (model.PaymentResult, error) {
	return f(ctx, req)
}

// Passthrough accepts a confirmation already captured client-side, as with
// a hosted checkout button. It only checks the confirmation is complete.
type Passthrough struct {
	Now func() time.Time
}

var _ Capturer = Passthrough{}

func (p Passthrough) Capture(ctx context.Context, req Request) (model.PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return model.PaymentResult{}, err
	}
	c := req.Confirmation
	if c.ID == "" {
		return model.PaymentResult{}, fmt.Errorf("%w: order %s: missing confirmation id", ErrDeclined, req.OrderID)
	}
	if !strings.EqualFold(c.Status, StatusCompleted) {
		return model.PaymentResult{}, fmt.Errorf("%w: order %s: status %q", ErrDeclined, req.OrderID, c.Status)
	}
	c.Status = StatusCompleted
	if c.UpdateTime == "" {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		c.UpdateTime = now().UTC().Format(time.RFC3339)
	}
	return c, nil
}
