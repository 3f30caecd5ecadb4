package shopcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/shopcache/events"
	"github.com/unkn0wn-root/shopcache/model"
	"github.com/unkn0wn-root/shopcache/payment"
)

// SettleOrder captures payment for an order and decrements stock for every
// line item, all or nothing.
//
// The order is read from the record store, never the cache. Product locks
// are taken in ascending id order and held across validation, capture and
// every write; they are released on all exit paths. Once the locks are held
// the workflow runs to completion even if ctx is cancelled.
//
// Errors: ErrNotFound, ErrAlreadyPaid, ErrLockContention, *ProductNotFoundError,
// *OutOfStockError, ErrPaymentCapture. On any error nothing was decremented
// and the order is still unpaid.
func (s *Shop) SettleOrder(ctx context.Context, orderID string, conf model.PaymentResult) (*model.Order, error) {
	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("settle order %s: %w", orderID, err)
	}
	if order.IsPaid {
		return nil, fmt.Errorf("settle order %s: %w", orderID, ErrAlreadyPaid)
	}

	ids := order.ProductIDs()
	resources := make([]string, len(ids))
	for i, id := range ids {
		resources[i] = s.productLock(id)
	}
	held, err := s.locks.AcquireAll(ctx, resources, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("settle order %s: %w", orderID, err)
	}

	paid, products, err := s.settleHeld(ctx, held, orderID, conf)
	if err != nil {
		s.log.Info("settlement failed", Fields{"order": orderID, "err": err})
		return nil, fmt.Errorf("settle order %s: %w", orderID, err)
	}

	s.orders.Mirror(ctx, paid)
	s.invalidateOrderLists(ctx, paid.User)
	s.log.Info("order settled", Fields{"order": orderID, "products": len(products), "total": paid.TotalPrice})
	s.publish(ctx, events.OrderPaid, paid.ID, paid)
	return paid, nil
}

// settleHeld runs settleLocked and releases held on every exit, panics
// included.
func (s *Shop) settleHeld(ctx context.Context, held *Held, orderID string, conf model.PaymentResult) (*model.Order, []*model.Product, error) {
	defer func() {
		if rerr := held.Release(ctx); rerr != nil {
			s.log.Warn("settlement lock release incomplete", Fields{"order": orderID, "err": rerr})
		}
	}()
	return s.settleLocked(context.WithoutCancel(ctx), orderID, conf)
}

// settleLocked runs with every product lock held.
func (s *Shop) settleLocked(ctx context.Context, orderID string, conf model.PaymentResult) (*model.Order, []*model.Product, error) {
	// reload: another settlement may have paid it while we waited
	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.IsPaid {
		return nil, nil, ErrAlreadyPaid
	}

	qty := order.Quantities()
	ids := order.ProductIDs()
	products := make([]*model.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.products.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil, nil, &ProductNotFoundError{ProductID: id}
		}
		if err != nil {
			return nil, nil, err
		}
		if p.CountInStock < qty[id] {
			return nil, nil, &OutOfStockError{ProductID: id, Name: p.Name, Requested: qty[id], Available: p.CountInStock}
		}
		products = append(products, p)
	}

	res, err := s.payments.Capture(ctx, payment.Request{OrderID: order.ID, Total: order.TotalPrice, Confirmation: conf})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPaymentCapture, err)
	}

	for _, p := range products {
		p.CountInStock -= qty[p.ID]
		if _, err := s.products.Save(ctx, p); err != nil {
			// earlier products are already decremented; the record store has
			// no cross-record transactions to roll them back with
			s.log.Error("stock decrement failed mid-settlement", Fields{"order": orderID, "product": p.ID, "err": err})
			return nil, nil, err
		}
	}

	now := s.now().UTC()
	order.IsPaid = true
	order.PaidAt = &now
	order.PaymentResult = &res
	paid, err := s.orders.Persist(ctx, order)
	if err != nil {
		s.log.Error("order persist failed after stock decrement", Fields{"order": orderID, "err": err})
		return nil, nil, err
	}
	return paid, products, nil
}
