package shopcache

import (
	"context"
	"errors"
	"time"

	c "github.com/unkn0wn-root/shopcache/codec"
	"github.com/unkn0wn-root/shopcache/events"
	gen "github.com/unkn0wn-root/shopcache/genstore"
	"github.com/unkn0wn-root/shopcache/internal/keys"
	"github.com/unkn0wn-root/shopcache/model"
	"github.com/unkn0wn-root/shopcache/payment"
	pr "github.com/unkn0wn-root/shopcache/provider"
	"github.com/unkn0wn-root/shopcache/recordstore"
)

const (
	defaultPageSize     = 10
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
	ordersNamespace     = "orders"
)

// Options wire a Shop. Provider and the three repositories are required;
// others have sensible defaults.
type Options struct {
	// Required
	Provider pr.Provider // shared cache; one client per process
	Products recordstore.Repository[*model.Product]
	Orders   recordstore.Repository[*model.Order]
	Users    recordstore.Repository[*model.User]

	Payments  payment.Capturer        // nil => payment.Passthrough
	Events    events.Publisher        // nil => events.Nop
	GenStore  gen.GenStore            // nil => genstore.Local (in-process)
	ListCodec c.Codec[[]*model.Order] // nil => msgpack
	Logger    Logger                  // nil => NopLogger
	Hooks     Hooks                   // nil => NopHooks

	RecordTTL       time.Duration // entity hashes; 0 => 24h, negative => no expiry
	ListTTL         time.Duration // order lists; 0 => 10m
	LockTTL         time.Duration // 0 => 10s
	PageSize        int           // default ListTopRated page size; 0 => 10
	RankIndex       string        // sorted set name; "" => productsSortedByRating
	RankAscending   bool          // list lowest rated first
	CleanupInterval time.Duration // local gen sweep; 0 => 1h
	GenRetention    time.Duration // local gen retention; 0 => 30d

	// CloseProvider makes Shop.Close close the provider too. Leave false
	// when the client is shared with other components.
	CloseProvider bool

	Now func() time.Time // nil => time.Now
}

func (o Options) Validate() error {
	var errs []error
	if o.Provider == nil {
		errs = append(errs, errors.New("shopcache: provider is required"))
	}
	if o.Products == nil {
		errs = append(errs, errors.New("shopcache: products repository is required"))
	}
	if o.Orders == nil {
		errs = append(errs, errors.New("shopcache: orders repository is required"))
	}
	if o.Users == nil {
		errs = append(errs, errors.New("shopcache: users repository is required"))
	}
	if o.PageSize < 0 {
		errs = append(errs, errors.New("shopcache: page size must not be negative"))
	}
	return errors.Join(errs...)
}

// Shop exposes the storefront operations over the record store and the
// shared cache.
type Shop struct {
	provider      pr.Provider
	closeProvider bool

	products *RecordCache[*model.Product]
	orders   *RecordCache[*model.Order]
	users    *RecordCache[*model.User]

	orderLists *collection[[]*model.Order]
	gen        gen.GenStore
	ownGen     bool

	locks    *Locker
	lockTTL  time.Duration
	rank     *RankIndex
	payments payment.Capturer
	events   events.Publisher

	pageSize int
	log      Logger
	hooks    Hooks
	now      func() time.Time
}

func New(opts Options) (*Shop, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})

	s := &Shop{
		provider:      opts.Provider,
		closeProvider: opts.CloseProvider,
		lockTTL:       coalesce(opts.LockTTL, defaultLockTTL),
		payments:      coalesce[payment.Capturer](opts.Payments, payment.Passthrough{Now: opts.Now}),
		events:        coalesce[events.Publisher](opts.Events, events.Nop{}),
		pageSize:      coalesce(opts.PageSize, defaultPageSize),
		log:           log,
		hooks:         hooks,
		now:           opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	var err error
	if s.products, err = NewRecordCache(RecordOptions[*model.Product]{
		Kind: model.KindProduct, Repo: opts.Products, Provider: opts.Provider,
		TTL: opts.RecordTTL, Logger: log, Hooks: hooks,
	}); err != nil {
		return nil, err
	}
	if s.orders, err = NewRecordCache(RecordOptions[*model.Order]{
		Kind: model.KindOrder, Repo: opts.Orders, Provider: opts.Provider,
		TTL: opts.RecordTTL, Logger: log, Hooks: hooks,
	}); err != nil {
		return nil, err
	}
	if s.users, err = NewRecordCache(RecordOptions[*model.User]{
		Kind: model.KindUser, Repo: opts.Users, Provider: opts.Provider,
		TTL: opts.RecordTTL, Logger: log, Hooks: hooks,
	}); err != nil {
		return nil, err
	}

	s.gen = opts.GenStore
	if s.gen == nil {
		s.gen = gen.NewLocal(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
		s.ownGen = true
	}
	listCodec := opts.ListCodec
	if listCodec == nil {
		listCodec = c.Msgpack[[]*model.Order]{}
	}
	s.orderLists = &collection[[]*model.Order]{
		ns:    ordersNamespace,
		p:     opts.Provider,
		codec: listCodec,
		gen:   s.gen,
		ttl:   coalesce(opts.ListTTL, defaultListTTL),
		log:   log,
		hooks: hooks,
	}

	s.locks = NewLocker(opts.Provider, s.lockTTL, log, hooks)
	s.rank = NewRankIndex(opts.Provider, coalesce(opts.RankIndex, keys.RankIndex), opts.RankAscending)
	return s, nil
}

// Locker exposes the shop's lock manager.
func (s *Shop) Locker() *Locker { return s.locks }

// Rank exposes the rating index.
func (s *Shop) Rank() *RankIndex { return s.rank }

// PageSize is the default ListTopRated page size.
func (s *Shop) PageSize() int { return s.pageSize }

// Close releases the generation store (when the shop created it), the event
// publisher and, with CloseProvider, the provider.
func (s *Shop) Close(ctx context.Context) error {
	var errs []error
	if s.ownGen {
		errs = append(errs, s.gen.Close(ctx))
	}
	errs = append(errs, s.events.Close())
	if s.closeProvider {
		errs = append(errs, s.provider.Close(ctx))
	}
	return errors.Join(errs...)
}

func (s *Shop) publish(ctx context.Context, typ, key string, payload any) {
	e := events.Event{Type: typ, Key: key, At: s.now().UTC(), Payload: payload}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("event publish failed", Fields{"type": typ, "key": key, "err": err})
	}
}

func (s *Shop) productLock(id string) string { return keys.Lock(model.KindProduct, id) }
