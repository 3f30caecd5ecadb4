// Command shopcached serves the shop API over a Redis cache and a Postgres
// (or in-memory) record store.
//
//	shopcached [serve|seed|destroy|reindex] [flags]
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/shopcache"
	"github.com/unkn0wn-root/shopcache/codec"
	"github.com/unkn0wn-root/shopcache/events"
	"github.com/unkn0wn-root/shopcache/events/kafka"
	gen "github.com/unkn0wn-root/shopcache/genstore"
	"github.com/unkn0wn-root/shopcache/hooks/async"
	"github.com/unkn0wn-root/shopcache/httpapi"
	zlog "github.com/unkn0wn-root/shopcache/log/zerolog"
	"github.com/unkn0wn-root/shopcache/model"
	rp "github.com/unkn0wn-root/shopcache/provider/redis"
	"github.com/unkn0wn-root/shopcache/recordstore"
	"github.com/unkn0wn-root/shopcache/recordstore/memory"
	"github.com/unkn0wn-root/shopcache/recordstore/postgres"
	"github.com/unkn0wn-root/shopcache/sloghooks"
)

//go:embed sample.json
var sampleData []byte

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	cmd := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}
	cfg, err := parseConfig(errOut, cmd, args)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}
	log := newLogger(cfg, errOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := open(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return 1
	}
	defer app.close()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, app, log)
	case "seed":
		err = seed(ctx, cfg, app.shop)
		if err == nil {
			fmt.Fprintln(out, "Data Imported!")
		}
	case "destroy":
		err = app.shop.Destroy(ctx)
		if err == nil {
			fmt.Fprintln(out, "Data Destroyed!")
		}
	case "reindex":
		var n int
		n, err = app.shop.Reindex(ctx)
		if err == nil {
			fmt.Fprintf(out, "Indexed %d products\n", n)
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Error().Err(err).Str("cmd", cmd).Msg("command failed")
		return 1
	}
	return 0
}

func newLogger(cfg Config, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if !cfg.LogJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

type app struct {
	shop  *shopcache.Shop
	hooks *asynchook.Hooks
	pool  *pgxpool.Pool
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.shop.Close(ctx)
	a.hooks.Close()
	if a.pool != nil {
		a.pool.Close()
	}
}

// open builds the single redis client, the record stores and the shop.
func open(ctx context.Context, cfg Config, log zerolog.Logger) (*app, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	provider, err := rp.New(rp.Config{Client: client, CloseClient: true})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	a := &app{}
	products, orders, users, err := a.repositories(ctx, cfg, log)
	if err != nil {
		_ = provider.Close(ctx)
		return nil, err
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.New(kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			_ = provider.Close(ctx)
			return nil, err
		}
		pub = kp
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events")
	}

	hookLog := stdslog.New(stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))
	a.hooks = asynchook.New(sloghooks.New(hookLog, sloghooks.Options{FallbackEvery: 10, DecodeFaultEvery: 10}), 1, 1024)

	lists, err := listCodec(cfg)
	if err != nil {
		a.hooks.Close()
		_ = provider.Close(ctx)
		return nil, err
	}

	a.shop, err = shopcache.New(shopcache.Options{
		Provider:      provider,
		Products:      products,
		Orders:        orders,
		Users:         users,
		Events:        pub,
		GenStore:      gen.NewRedis(client, "shop", 30*24*time.Hour),
		ListCodec:     lists,
		Logger:        zlog.New(log),
		Hooks:         a.hooks,
		RecordTTL:     cfg.RecordTTL,
		LockTTL:       cfg.LockTTL,
		PageSize:      cfg.PageSize,
		CloseProvider: true,
	})
	if err != nil {
		a.hooks.Close()
		_ = provider.Close(ctx)
		return nil, err
	}
	return a, nil
}

func listCodec(cfg Config) (codec.Codec[[]*model.Order], error) {
	var inner codec.Codec[[]*model.Order]
	switch cfg.ListCodec {
	case "cbor":
		c, err := codec.NewCBOR[[]*model.Order](true)
		if err != nil {
			return nil, err
		}
		inner = c
	case "json":
		inner = codec.JSON[[]*model.Order]{}
	default:
		inner = codec.Msgpack[[]*model.Order]{}
	}
	return codec.Limit[[]*model.Order]{Inner: inner, MaxDecode: cfg.ListMaxBytes}, nil
}

func (a *app) repositories(ctx context.Context, cfg Config, log zerolog.Logger) (
	recordstore.Repository[*model.Product], recordstore.Repository[*model.Order], recordstore.Repository[*model.User], error,
) {
	if cfg.PostgresDSN == "" {
		log.Warn().Msg("no POSTGRES_DSN; records are kept in memory")
		return memory.New[*model.Product](), memory.New[*model.Order](), memory.New[*model.User](), nil
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: %w", err)
	}
	a.pool = pool
	products, err := postgres.New[*model.Product](pool, "products")
	if err != nil {
		return nil, nil, nil, err
	}
	orders, err := postgres.New[*model.Order](pool, "orders")
	if err != nil {
		return nil, nil, nil, err
	}
	users, err := postgres.New[*model.User](pool, "users")
	if err != nil {
		return nil, nil, nil, err
	}
	for _, m := range []interface{ Migrate(context.Context) error }{products, orders, users} {
		if err := m.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return products, orders, users, nil
}

func serve(ctx context.Context, cfg Config, a *app, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.New(a.shop, log, httpapi.Options{PageSize: cfg.PageSize}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type seedData struct {
	Users    []*model.User    `json:"users"`
	Products []*model.Product `json:"products"`
}

func loadSeed(cfg Config) (seedData, error) {
	var d seedData
	if err := json.Unmarshal(sampleData, &d); err != nil {
		return d, fmt.Errorf("sample data: %w", err)
	}
	if cfg.UsersFile != "" {
		if err := readJSON(cfg.UsersFile, &d.Users); err != nil {
			return d, err
		}
	}
	if cfg.ProductsFile != "" {
		if err := readJSON(cfg.ProductsFile, &d.Products); err != nil {
			return d, err
		}
	}
	return d, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func seed(ctx context.Context, cfg Config, shop *shopcache.Shop) error {
	d, err := loadSeed(cfg)
	if err != nil {
		return err
	}
	return shop.Seed(ctx, d.Products, d.Users)
}
