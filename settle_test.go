package shopcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/shopcache/internal/keys"
	"github.com/unkn0wn-root/shopcache/model"
	"github.com/unkn0wn-root/shopcache/payment"
)

func TestSettleOrderSuccess(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.product(t, "p1", 5, 10)
	h.product(t, "p2", 2, 20)
	o := h.rawOrder(t, "o1", item("p1", 2), item("p2", 1), item("p1", 1))

	paid, err := h.shop.SettleOrder(ctx, o.ID, okPayment())
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, fixedNow, *paid.PaidAt)
	require.NotNil(t, paid.PaymentResult)
	assert.Equal(t, "PAY-1", paid.PaymentResult.ID)

	assert.Equal(t, 2, h.storedStock(t, "p1"))
	assert.Equal(t, 1, h.storedStock(t, "p2"))

	// mirrored order and products reflect the settlement
	cached, err := h.shop.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, cached.IsPaid)
	cp, err := h.shop.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, cp.CountInStock)

	for _, id := range []string{"p1", "p2"} {
		ok, err := h.shop.Locker().Acquire(ctx, keys.Lock(model.KindProduct, id), time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "lock for %s left behind", id)
	}
}

// Two line items, the second out of stock: nothing is decremented, the
// order stays unpaid and both locks are released.
func TestSettleOrderOutOfStockIsAllOrNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.product(t, "product1", 5, 10)
	h.product(t, "product2", 0, 10)
	o := h.rawOrder(t, "o1", item("product1", 2), item("product2", 1))

	_, err := h.shop.SettleOrder(ctx, o.ID, okPayment())
	require.ErrorIs(t, err, ErrOutOfStock)
	var oos *OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "product2", oos.ProductID)
	assert.Equal(t, 1, oos.Requested)
	assert.Equal(t, 0, oos.Available)

	assert.Equal(t, 5, h.storedStock(t, "product1"))
	stored, err := h.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
	assert.Nil(t, stored.PaidAt)

	for _, id := range []string{"product1", "product2"} {
		ok, err := h.shop.Locker().Acquire(ctx, keys.Lock(model.KindProduct, id), time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "lock for %s left behind", id)
	}
}

func TestSettleOrderConcurrentNeverOversells(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newHarness(t, nil)
		ctx := context.Background()
		h.product(t, "p1", 3, 10)
		a := h.rawOrder(t, "a", item("p1", 2))
		b := h.rawOrder(t, "b", item("p1", 2))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, id := range []string{a.ID, b.ID} {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				_, errs[i] = h.shop.SettleOrder(ctx, id, okPayment())
			}(i, id)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			if !errors.Is(err, ErrOutOfStock) && !errors.Is(err, ErrLockContention) {
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		require.Equal(t, 1, succeeded, "round %d: errs=%v", round, errs)
		require.Equal(t, 1, h.storedStock(t, "p1"))
	}
}

func TestSettleOrderLockContention(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.product(t, "p1", 5, 10)
	h.product(t, "p2", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 1), item("p2", 1))

	ok, err := h.shop.Locker().Acquire(ctx, keys.Lock(model.KindProduct, "p2"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.shop.SettleOrder(ctx, o.ID, okPayment())
	require.ErrorIs(t, err, ErrLockContention)
	assert.Equal(t, 5, h.storedStock(t, "p1"))
	assert.True(t, h.hooks.has("lock:locks:product:p2"))

	// p1 was taken first and must have been rolled back
	ok, err = h.shop.Locker().Acquire(ctx, keys.Lock(model.KindProduct, "p1"), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSettleOrderLockStoreDown(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.product(t, "p1", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 1))

	h.cache.fail("SetNX")
	_, err := h.shop.SettleOrder(ctx, o.ID, okPayment())
	require.ErrorIs(t, err, ErrLockContention)
	require.ErrorIs(t, err, errDown)
	assert.Equal(t, 5, h.storedStock(t, "p1"))
}

func TestSettleOrderRejectsPaidOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.product(t, "p1", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 1))

	_, err := h.shop.SettleOrder(ctx, o.ID, okPayment())
	require.NoError(t, err)
	_, err = h.shop.SettleOrder(ctx, o.ID, okPayment())
	require.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, 4, h.storedStock(t, "p1"))
}

func TestSettleOrderMissingProduct(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.product(t, "p1", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 1), item("gone", 1))

	_, err := h.shop.SettleOrder(ctx, o.ID, okPayment())
	var pnf *ProductNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "gone", pnf.ProductID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 5, h.storedStock(t, "p1"))
}

func TestSettleOrderNotFound(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.shop.SettleOrder(context.Background(), "nope", okPayment())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSettleOrderPaymentDeclined(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.product(t, "p1", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 1))

	_, err := h.shop.SettleOrder(ctx, o.ID, model.PaymentResult{ID: "PAY-9", Status: "VOIDED"})
	require.ErrorIs(t, err, ErrPaymentCapture)
	require.ErrorIs(t, err, payment.ErrDeclined)
	assert.Equal(t, 5, h.storedStock(t, "p1"))

	stored, err := h.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestSettleOrderCustomCapturer(t *testing.T) {
	var got payment.Request
	h := newHarness(t, func(o *Options) {
		o.Payments = payment.CapturerFunc(func(_ context.Context, req payment.Request) (model.PaymentResult, error) {
			got = req
			return model.PaymentResult{ID: "GW-7", Status: payment.StatusCompleted}, nil
		})
	})
	h.product(t, "p1", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 3))

	paid, err := h.shop.SettleOrder(context.Background(), o.ID, okPayment())
	require.NoError(t, err)
	assert.Equal(t, "GW-7", paid.PaymentResult.ID)
	assert.Equal(t, o.TotalPrice, got.Total)
	assert.Equal(t, "o1", got.OrderID)
}

func TestSettleOrderWithoutItems(t *testing.T) {
	h := newHarness(t, nil)
	o := h.rawOrder(t, "o1")

	paid, err := h.shop.SettleOrder(context.Background(), o.ID, okPayment())
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
}

func TestSettleOrderIgnoresCancelAfterLocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, func(o *Options) {
		o.Payments = payment.CapturerFunc(func(c context.Context, req payment.Request) (model.PaymentResult, error) {
			cancel()
			if err := c.Err(); err != nil {
				return model.PaymentResult{}, err
			}
			return req.Confirmation, nil
		})
	})
	h.product(t, "p1", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 1))

	_, err := h.shop.SettleOrder(ctx, o.ID, okPayment())
	require.NoError(t, err)
	assert.Equal(t, 4, h.storedStock(t, "p1"))

	ok, err := h.shop.Locker().Acquire(context.Background(), keys.Lock(model.KindProduct, "p1"), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSettleOrderReleasesLocksOnPanic(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Payments = payment.CapturerFunc(func(context.Context, payment.Request) (model.PaymentResult, error) {
			panic("gateway exploded")
		})
	})
	h.product(t, "p1", 5, 10)
	h.product(t, "p2", 5, 10)
	o := h.rawOrder(t, "o1", item("p1", 1), item("p2", 1))

	assert.PanicsWithValue(t, "gateway exploded", func() {
		_, _ = h.shop.SettleOrder(context.Background(), o.ID, okPayment())
	})

	for _, id := range []string{"p1", "p2"} {
		ok, err := h.shop.Locker().Acquire(context.Background(), keys.Lock(model.KindProduct, id), time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "lock on %s leaked", id)
		assert.Equal(t, 5, h.storedStock(t, id))
	}
}
