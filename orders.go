package shopcache

import (
	"context"
	"errors"
	"strings"

	"github.com/unkn0wn-root/shopcache/events"
	"github.com/unkn0wn-root/shopcache/model"
	"github.com/unkn0wn-root/shopcache/recordstore"
)

const (
	freeShippingOver = 100.0
	flatShipping     = 10.0
	taxRate          = 0.15
)

// OrderInput is a checkout request. Prices are never taken from the caller.
type OrderInput struct {
	Items           []OrderLine           `json:"orderItems"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
}

type OrderLine struct {
	ProductID string `json:"product"`
	Qty       int    `json:"qty"`
}

// CreateOrder snapshots product names and prices, checks stock against the
// current (possibly cached) product view and computes totals. Stock is only
// reserved by SettleOrder.
func (s *Shop) CreateOrder(ctx context.Context, userID string, in OrderInput) (*model.Order, error) {
	if userID == "" {
		return nil, invalid("order owner is required")
	}
	if len(in.Items) == 0 {
		return nil, ErrNoOrderItems
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return nil, invalid("payment method is required")
	}

	want := make(map[string]int, len(in.Items))
	for _, l := range in.Items {
		if l.ProductID == "" || l.Qty <= 0 {
			return nil, invalid("line %q qty %d", l.ProductID, l.Qty)
		}
		want[l.ProductID] += l.Qty
	}

	order := &model.Order{
		User:            userID,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		OrderItems:      make([]model.OrderItem, 0, len(in.Items)),
	}
	checked := make(map[string]*model.Product, len(want))
	for _, l := range in.Items {
		p, ok := checked[l.ProductID]
		if !ok {
			var err error
			p, err = s.products.GetByID(ctx, l.ProductID)
			if errors.Is(err, ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: l.ProductID}
			}
			if err != nil {
				return nil, err
			}
			if p.CountInStock < want[p.ID] {
				return nil, &OutOfStockError{ProductID: p.ID, Name: p.Name, Requested: want[p.ID], Available: p.CountInStock}
			}
			checked[l.ProductID] = p
		}
		order.OrderItems = append(order.OrderItems, model.OrderItem{
			Name:    p.Name,
			Qty:     l.Qty,
			Image:   p.Image,
			Price:   p.Price,
			Product: p.ID,
		})
	}
	price(order)

	saved, err := s.orders.Create(ctx, order)
	if err != nil {
		return nil, err
	}
	s.invalidateOrderLists(ctx, userID)
	s.publish(ctx, events.OrderCreated, saved.ID, saved)
	return saved, nil
}

// price fills the order totals: shipping is free over 100, tax is 15% of
// the items, everything rounded to cents.
func price(o *model.Order) {
	var items float64
	for _, it := range o.OrderItems {
		items += it.Price * float64(it.Qty)
	}
	o.ItemsPrice = cents(items)
	o.ShippingPrice = flatShipping
	if o.ItemsPrice > freeShippingOver {
		o.ShippingPrice = 0
	}
	o.TaxPrice = cents(taxRate * o.ItemsPrice)
	o.TotalPrice = cents(o.ItemsPrice + o.ShippingPrice + o.TaxPrice)
}

func (s *Shop) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListUserOrders returns the orders of one user, oldest first.
func (s *Shop) ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.orderLists.Load(ctx, userListKey(userID), func(ctx context.Context) ([]*model.Order, error) {
		return s.orders.Find(ctx, recordstore.Filter{"user": userID})
	})
}

// ListOrders returns every order, oldest first.
func (s *Shop) ListOrders(ctx context.Context) ([]*model.Order, error) {
	return s.orderLists.Load(ctx, allOrdersKey, func(ctx context.Context) ([]*model.Order, error) {
		return s.orders.Find(ctx, nil)
	})
}

// MarkDelivered flags a paid order as delivered.
func (s *Shop) MarkDelivered(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.orders.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.IsPaid {
		return nil, invalid("order %s is not paid", id)
	}
	now := s.now().UTC()
	o.IsDelivered = true
	o.DeliveredAt = &now
	saved, err := s.orders.Save(ctx, o)
	if err != nil {
		return nil, err
	}
	s.invalidateOrderLists(ctx, saved.User)
	s.publish(ctx, events.OrderDelivered, saved.ID, saved)
	return saved, nil
}

func (s *Shop) DeleteOrder(ctx context.Context, id string) error {
	o, err := s.orders.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateOrderLists(ctx, o.User)
	return nil
}

const allOrdersKey = "all"

func userListKey(userID string) string { return "user:" + userID }

func (s *Shop) invalidateOrderLists(ctx context.Context, userID string) {
	for _, k := range []string{allOrdersKey, userListKey(userID)} {
		if err := s.orderLists.Invalidate(ctx, k); err != nil {
			s.hooks.MirrorFailed(s.orderLists.storageKey(k), err)
		}
	}
}
