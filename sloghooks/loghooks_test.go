package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSamplingAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := New(l, Options{FallbackEvery: 3})

	for i := 0; i < 6; i++ {
		h.CacheFallback("user:42", errors.New("down"))
	}
	if n := strings.Count(buf.String(), "shopcache.cache_fallback"); n != 2 {
		t.Fatalf("sampled lines=%d\n%s", n, buf.String())
	}
	if strings.Contains(buf.String(), "user:42") {
		t.Fatal("key not redacted")
	}

	buf.Reset()
	h = New(l, Options{Redact: func(k string) string { return "<" + k + ">" }})
	h.LockContended("locks:product:1", nil)
	h.LockContended("locks:product:2", errors.New("dial"))
	out := buf.String()
	if !strings.Contains(out, "shopcache.lock_contended") || !strings.Contains(out, "<locks:product:1>") {
		t.Fatalf("out=%s", out)
	}
	if !strings.Contains(out, "shopcache.lock_store_error") {
		t.Fatalf("out=%s", out)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.MirrorFailed("k", nil)
	h.CollectionSelfHeal("k", "corrupt")
	h.IndexUpdateFailed("p", nil)
	h.DecodeFault("k", "f", nil)
}
