package shopcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/shopcache/model"
	pr "github.com/unkn0wn-root/shopcache/provider"
	memprov "github.com/unkn0wn-root/shopcache/provider/memory"
	memrepo "github.com/unkn0wn-root/shopcache/recordstore/memory"
)

var errDown = errors.New("cache down")

// faultyProvider fails selected operations on demand.
type faultyProvider struct {
	pr.Provider
	mu    sync.Mutex
	fails map[string]bool
}

func newFaulty(p pr.Provider) *faultyProvider {
	return &faultyProvider{Provider: p, fails: map[string]bool{}}
}

func (f *faultyProvider) fail(ops ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range ops {
		f.fails[op] = true
	}
}

func (f *faultyProvider) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails = map[string]bool{}
}

func (f *faultyProvider) down(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fails[op]
}

func (f *faultyProvider) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if f.down("HGetAll") {
		return nil, errDown
	}
	return f.Provider.HGetAll(ctx, key)
}

func (f *faultyProvider) HReplace(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if f.down("HReplace") {
		return errDown
	}
	return f.Provider.HReplace(ctx, key, fields, ttl)
}

func (f *faultyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if f.down("SetNX") {
		return false, errDown
	}
	return f.Provider.SetNX(ctx, key, value, ttl)
}

func (f *faultyProvider) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if f.down("ZRange") {
		return nil, errDown
	}
	return f.Provider.ZRange(ctx, key, start, stop)
}

func (f *faultyProvider) SIsMember(ctx context.Context, key, member string) (bool, error) {
	if f.down("SIsMember") {
		return false, errDown
	}
	return f.Provider.SIsMember(ctx, key, member)
}

// recHooks records hook calls as "<hook>:<key>".
type recHooks struct {
	mu    sync.Mutex
	calls []string
}

func (h *recHooks) add(s string) {
	h.mu.Lock()
	h.calls = append(h.calls, s)
	h.mu.Unlock()
}

func (h *recHooks) has(prefix string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (h *recHooks) CacheFallback(key string, _ error)      { h.add("fallback:" + key) }
func (h *recHooks) MirrorFailed(key string, _ error)       { h.add("mirror:" + key) }
func (h *recHooks) DecodeFault(key, field string, _ error) { h.add("decode:" + key + ":" + field) }
func (h *recHooks) LockContended(resource string, _ error) { h.add("lock:" + resource) }
func (h *recHooks) IndexUpdateFailed(id string, _ error)   { h.add("index:" + id) }
func (h *recHooks) CollectionSelfHeal(key, reason string)  { h.add("heal:" + key + ":" + reason) }

type harness struct {
	shop     *Shop
	cache    *faultyProvider
	products *memrepo.Repository[*model.Product]
	orders   *memrepo.Repository[*model.Order]
	users    *memrepo.Repository[*model.User]
	hooks    *recHooks
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, mod func(*Options)) *harness {
	t.Helper()
	h := &harness{
		cache:    newFaulty(memprov.New()),
		products: memrepo.New[*model.Product](),
		orders:   memrepo.New[*model.Order](),
		users:    memrepo.New[*model.User](),
		hooks:    &recHooks{},
	}
	opts := Options{
		Provider:      h.cache,
		Products:      h.products,
		Orders:        h.orders,
		Users:         h.users,
		Hooks:         h.hooks,
		CloseProvider: true,
		Now:           func() time.Time { return fixedNow },
	}
	if mod != nil {
		mod(&opts)
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	h.shop = s
	return h
}

func (h *harness) product(t *testing.T, id string, stock int, price float64) *model.Product {
	t.Helper()
	p, err := h.shop.CreateProduct(context.Background(), &model.Product{
		ID: id, Name: "name-" + id, Brand: "acme", Category: "misc",
		Price: price, CountInStock: stock,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", id, err)
	}
	return p
}

// storedStock reads the authoritative stock.
func (h *harness) storedStock(t *testing.T, id string) int {
	t.Helper()
	p, err := h.products.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID(%s): %v", id, err)
	}
	return p.CountInStock
}

// rawOrder stores an unpaid order directly, skipping checkout checks.
func (h *harness) rawOrder(t *testing.T, id string, items ...model.OrderItem) *model.Order {
	t.Helper()
	o := &model.Order{ID: id, User: "u1", OrderItems: items, PaymentMethod: "PayPal"}
	price(o)
	saved, err := h.orders.Save(context.Background(), o)
	if err != nil {
		t.Fatalf("save order: %v", err)
	}
	return saved
}

func item(productID string, qty int) model.OrderItem {
	return model.OrderItem{Product: productID, Qty: qty, Name: "name-" + productID, Price: 10}
}

func okPayment() model.PaymentResult {
	return model.PaymentResult{ID: "PAY-1", Status: "COMPLETED", EmailAddress: "buyer@example.com"}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Fatal("expected error for empty options")
	}
	for _, want := range []string{"provider", "products", "orders", "users"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestCloseProviderFlag(t *testing.T) {
	p := memprov.New()
	s, err := New(Options{
		Provider: p,
		Products: memrepo.New[*model.Product](),
		Orders:   memrepo.New[*model.Order](),
		Users:    memrepo.New[*model.User](),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("provider closed without CloseProvider: %v", err)
	}
}
