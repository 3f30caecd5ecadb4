package shopcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/shopcache/internal/keys"
	"github.com/unkn0wn-root/shopcache/model"
)

// Seed replaces all data with users and products. Products without an owner
// are attributed to the first admin user. The rating index is rebuilt.
func (s *Shop) Seed(ctx context.Context, products []*model.Product, users []*model.User) error {
	if err := s.Destroy(ctx); err != nil {
		return err
	}
	var admin string
	for _, u := range users {
		saved, err := s.RegisterUser(ctx, u)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Email, err)
		}
		if admin == "" && saved.IsAdmin {
			admin = saved.ID
		}
	}
	for _, p := range products {
		if p.User == "" {
			p.User = admin
		}
		if _, err := s.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	s.log.Info("seeded", Fields{"users": len(users), "products": len(products)})
	return nil
}

// Destroy deletes every order, product and user from the record store and
// clears their cache entries, the rating index and the email set.
func (s *Shop) Destroy(ctx context.Context) error {
	orders, err := s.orders.Find(ctx, nil)
	if err != nil {
		return err
	}
	users := make(map[string]struct{})
	for _, o := range orders {
		if err := s.orders.Delete(ctx, o.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		users[o.User] = struct{}{}
	}
	for u := range users {
		s.invalidateOrderLists(ctx, u)
	}
	if err := s.orderLists.Invalidate(ctx, allOrdersKey); err != nil {
		s.hooks.MirrorFailed(s.orderLists.storageKey(allOrdersKey), err)
	}

	products, err := s.products.Find(ctx, nil)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := s.products.Delete(ctx, p.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	us, err := s.users.Find(ctx, nil)
	if err != nil {
		return err
	}
	for _, u := range us {
		if err := s.users.Delete(ctx, u.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	if err := s.rank.Reset(ctx); err != nil {
		s.hooks.IndexUpdateFailed("", err)
		return err
	}
	if err := s.provider.Del(ctx, keys.Emails); err != nil {
		return err
	}
	s.log.Info("destroyed", Fields{"orders": len(orders), "products": len(products), "users": len(us)})
	return nil
}

// Reindex rebuilds the rating index from the record store in insertion order.
func (s *Shop) Reindex(ctx context.Context) (int, error) {
	products, err := s.products.Find(ctx, nil)
	if err != nil {
		return 0, err
	}
	if err := s.rank.Reset(ctx); err != nil {
		return 0, err
	}
	for _, p := range products {
		if err := s.rank.Add(ctx, p.ID, p.Rating); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}
