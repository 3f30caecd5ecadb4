package shopcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/shopcache/recordstore"
)

// ErrNotFound reports an absent product, order or user.
var ErrNotFound = recordstore.ErrNotFound

var (
	ErrOutOfStock      = errors.New("shopcache: out of stock")
	ErrLockContention  = errors.New("shopcache: lock contention")
	ErrPaymentCapture  = errors.New("shopcache: payment capture failed")
	ErrAlreadyPaid     = errors.New("shopcache: order already paid")
	ErrNoOrderItems    = errors.New("shopcache: order has no items")
	ErrAlreadyReviewed = errors.New("shopcache: product already reviewed")
	ErrEmailTaken      = errors.New("shopcache: email already registered")
	ErrAdminUser       = errors.New("shopcache: cannot delete admin user")
	ErrInvalidInput    = errors.New("shopcache: invalid input")
)

// OutOfStockError names the product that cannot cover a requested quantity.
// It matches ErrOutOfStock.
type OutOfStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("shopcache: product %s (%s) out of stock: requested %d, available %d",
		e.ProductID, e.Name, e.Requested, e.Available)
}

func (e *OutOfStockError) Is(target error) bool { return target == ErrOutOfStock }

// ProductNotFoundError is returned when an order line references a product
// that no longer exists. It matches ErrNotFound.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("shopcache: product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidateError is returned when a collection invalidation could not both
// bump the generation and delete the entry.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
