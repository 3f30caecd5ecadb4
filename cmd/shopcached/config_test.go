package main

import (
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseConfigEnvDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("PAGINATION_LIMIT", "4")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("POSTGRES_DSN", "")

	cfg, err := parseConfig(io.Discard, "serve", nil)
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.RedisAddr != "cache:6380" || cfg.PageSize != 4 || cfg.PostgresDSN != "" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if diff := cmp.Diff([]string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers); diff != "" {
		t.Fatalf("brokers (-want +got):\n%s", diff)
	}
}

func TestParseConfigFlagsWin(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":1")
	cfg, err := parseConfig(io.Discard, "serve", []string{"--http-addr", ":9090", "--lock-ttl", "3s"})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.LockTTL != 3*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestParseConfigValidates(t *testing.T) {
	if _, err := parseConfig(io.Discard, "serve", []string{"--page-size", "0"}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := parseConfig(io.Discard, "serve", []string{"--list-codec", "gob"}); err == nil {
		t.Fatal("expected list codec error")
	}
	if _, err := parseConfig(io.Discard, "serve", []string{"--nope"}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}
