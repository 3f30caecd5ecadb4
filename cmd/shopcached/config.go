package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

// Config is bound from flags; each flag defaults to its environment variable.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string // empty => in-memory record store
	KafkaBrokers  []string
	KafkaTopic    string
	HTTPAddr      string
	PageSize      int
	RecordTTL     time.Duration
	LockTTL       time.Duration
	ListCodec     string // msgpack, cbor or json
	ListMaxBytes  int    // 0 => unlimited
	LogJSON       bool
	LogLevel      string

	// seed only
	ProductsFile string
	UsersFile    string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseConfig(errOut io.Writer, name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)

	var cfg Config
	fs.StringVar(&cfg.RedisAddr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "Redis address (REDIS_ADDR)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password (REDIS_PASSWORD)")
	fs.IntVar(&cfg.RedisDB, "redis-db", envInt("REDIS_DB", 0), "Redis database (REDIS_DB)")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "Postgres DSN; empty keeps records in memory (POSTGRES_DSN)")
	brokers := fs.String("kafka-brokers", os.Getenv("KAFKA_BROKERS"), "comma separated Kafka brokers; empty disables events (KAFKA_BROKERS)")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", envOr("KAFKA_TOPIC", "shop-events"), "Kafka topic (KAFKA_TOPIC)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address (HTTP_ADDR)")
	fs.IntVar(&cfg.PageSize, "page-size", envInt("PAGINATION_LIMIT", 10), "products per listing page (PAGINATION_LIMIT)")
	fs.DurationVar(&cfg.RecordTTL, "record-ttl", 24*time.Hour, "entity cache TTL; negative disables expiry")
	fs.DurationVar(&cfg.LockTTL, "lock-ttl", 10*time.Second, "settlement lock TTL")
	fs.StringVar(&cfg.ListCodec, "list-codec", envOr("LIST_CODEC", "msgpack"), "order list cache encoding: msgpack, cbor or json (LIST_CODEC)")
	fs.IntVar(&cfg.ListMaxBytes, "list-max-bytes", 4<<20, "refuse to decode cached order lists larger than this; 0 disables")
	fs.BoolVar(&cfg.LogJSON, "log-json", os.Getenv("LOG_JSON") != "", "JSON logs instead of console (LOG_JSON)")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (LOG_LEVEL)")
	fs.StringVar(&cfg.ProductsFile, "products", "", "seed: JSON array of products; default built-in sample")
	fs.StringVar(&cfg.UsersFile, "users", "", "seed: JSON array of users; default built-in sample")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.KafkaBrokers = splitList(*brokers)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("redis address is required"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got %d", c.PageSize))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL))
	}
	switch c.ListCodec {
	case "msgpack", "cbor", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown list codec %q", c.ListCodec))
	}
	return errors.Join(errs...)
}
