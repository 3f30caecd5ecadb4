package shopcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/unkn0wn-root/shopcache/events"
	"github.com/unkn0wn-root/shopcache/model"
)

// ProductPage is one page of the rating listing.
type ProductPage struct {
	Products []*model.Product `json:"products"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}

// ProductUpdate carries the fields an update may change; nil means keep.
type ProductUpdate struct {
	Name         *string  `json:"name,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Image        *string  `json:"image,omitempty"`
	Brand        *string  `json:"brand,omitempty"`
	Category     *string  `json:"category,omitempty"`
	CountInStock *int     `json:"countInStock,omitempty"`
}

// ReviewInput is a new review by an authenticated user.
type ReviewInput struct {
	UserID   string
	UserName string
	Rating   float64
	Comment  string
}

func (s *Shop) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.products.GetByID(ctx, id)
}

// CreateProduct stores p, mirrors it and adds it to the rating index.
// Review aggregates are recomputed from p.Reviews.
func (s *Shop) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.Rerate()
	saved, err := s.products.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, saved)
	return saved, nil
}

func validateProduct(p *model.Product) error {
	switch {
	case p == nil:
		return invalid("nil product")
	case strings.TrimSpace(p.Name) == "":
		return invalid("product name is required")
	case p.Price < 0:
		return invalid("price %v", p.Price)
	case p.CountInStock < 0:
		return invalid("countInStock %d", p.CountInStock)
	}
	return nil
}

// UpdateProduct applies u under the product lock, so it cannot overwrite a
// concurrent stock decrement.
func (s *Shop) UpdateProduct(ctx context.Context, id string, u ProductUpdate) (*model.Product, error) {
	return s.withProduct(ctx, id, func(p *model.Product) error {
		if u.Name != nil {
			p.Name = *u.Name
		}
		if u.Price != nil {
			p.Price = *u.Price
		}
		if u.Description != nil {
			p.Description = *u.Description
		}
		if u.Image != nil {
			p.Image = *u.Image
		}
		if u.Brand != nil {
			p.Brand = *u.Brand
		}
		if u.Category != nil {
			p.Category = *u.Category
		}
		if u.CountInStock != nil {
			p.CountInStock = *u.CountInStock
		}
		return validateProduct(p)
	})
}

// AddReview appends a review, recomputes the average rating and re-scores
// the product in the rating index. A user may review a product once.
func (s *Shop) AddReview(ctx context.Context, productID string, in ReviewInput) (*model.Product, error) {
	if in.UserID == "" {
		return nil, invalid("reviewer is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalid("rating %v not in 1..5", in.Rating)
	}
	p, err := s.withProduct(ctx, productID, func(p *model.Product) error {
		if p.ReviewedBy(in.UserID) {
			return ErrAlreadyReviewed
		}
		p.Reviews = append(p.Reviews, model.Review{
			Name:      in.UserName,
			Rating:    in.Rating,
			Comment:   in.Comment,
			User:      in.UserID,
			CreatedAt: s.now().UTC(),
		})
		p.Rerate()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.ProductRated, p.ID, map[string]any{"rating": p.Rating, "numReviews": p.NumReviews})
	return p, nil
}

// withProduct loads id from the record store under its lock, applies fn,
// saves, mirrors and re-scores it.
func (s *Shop) withProduct(ctx context.Context, id string, fn func(*model.Product) error) (*model.Product, error) {
	lock := s.productLock(id)
	ok, err := s.locks.Acquire(ctx, lock, s.lockTTL)
	if err != nil || !ok {
		s.hooks.LockContended(lock, err)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLockContention, lock, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrLockContention, lock)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			s.log.Warn("product lock release failed", Fields{"resource": lock, "err": err})
		}
	}()

	p, err := s.products.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	saved, err := s.products.Save(ctx, p)
	if err != nil {
		return nil, err
	}
	s.reindex(ctx, saved)
	return saved, nil
}

// DeleteProduct removes the product from the record store, the cache and the
// rating index.
func (s *Shop) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.rank.Remove(ctx, id); err != nil {
		s.log.Warn("rating index remove failed", Fields{"product": id, "err": err})
		s.hooks.IndexUpdateFailed(id, err)
	}
	s.publish(ctx, events.ProductDeleted, id, nil)
	return nil
}

func (s *Shop) reindex(ctx context.Context, p *model.Product) {
	if err := s.rank.Add(ctx, p.ID, p.Rating); err != nil {
		s.log.Warn("rating index update failed", Fields{"product": p.ID, "err": err})
		s.hooks.IndexUpdateFailed(p.ID, err)
	}
}

// ListTopRated returns page (1-based) of products ordered by rating, ties by
// insertion order. pageSize <= 0 uses the shop default. If the index is
// unreachable the page is computed from the record store. Index entries
// whose product is gone are removed and the page is refilled.
func (s *Shop) ListTopRated(ctx context.Context, page, pageSize int) (*ProductPage, error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var products []*model.Product
	for attempt := 0; ; attempt++ {
		ids, err := s.rank.Top(ctx, offset, pageSize)
		if err != nil {
			return s.topRatedFromStore(ctx, page, pageSize, err)
		}
		var stale int
		products, stale, err = s.loadRanked(ctx, ids)
		if err != nil {
			return nil, err
		}
		// stale ids left holes; the removal shifted later members up
		if stale == 0 || attempt == maxRankRefills {
			break
		}
	}
	n, err := s.rank.Size(ctx)
	if err != nil {
		return s.topRatedFromStore(ctx, page, pageSize, err)
	}
	return &ProductPage{Products: products, Page: page, Pages: pages(int(n), pageSize)}, nil
}

const maxRankRefills = 2

// loadRanked resolves index ids to products, removing ids whose record no
// longer exists.
func (s *Shop) loadRanked(ctx context.Context, ids []string) ([]*model.Product, int, error) {
	out := make([]*model.Product, 0, len(ids))
	var stale int
	for _, id := range ids {
		p, err := s.products.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.hooks.IndexUpdateFailed(id, err)
			if rerr := s.rank.Remove(ctx, id); rerr != nil {
				s.log.Warn("rating index remove failed", Fields{"product": id, "err": rerr})
			}
			stale++
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, stale, nil
}

func (s *Shop) topRatedFromStore(ctx context.Context, page, pageSize int, cause error) (*ProductPage, error) {
	s.log.Warn("rating index unavailable; listing from record store", Fields{"err": cause})
	s.hooks.CacheFallback(s.rank.name, cause)
	all, err := s.products.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	asc := s.rank.ascending
	sort.SliceStable(all, func(i, j int) bool {
		if asc {
			return all[i].Rating < all[j].Rating
		}
		return all[i].Rating > all[j].Rating
	})
	out := &ProductPage{Page: page, Pages: pages(len(all), pageSize), Products: []*model.Product{}}
	start := (page - 1) * pageSize
	if start < len(all) {
		end := min(start+pageSize, len(all))
		out.Products = all[start:end]
	}
	return out, nil
}
