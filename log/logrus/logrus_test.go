package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/shopcache"
)

func TestLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("boom")
	l.Warn("mirror failed", shopcache.Fields{"err": boom, "key": "order:1"})
	l.Debug("quiet", nil)

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e.Level != logrus.WarnLevel || e.Message != "mirror failed" {
		t.Fatalf("entry=%+v", e)
	}
	if e.Data[logrus.ErrorKey] != boom || e.Data["key"] != "order:1" || e.Data["component"] != "shopcache" {
		t.Fatalf("data=%v", e.Data)
	}
	if entries[1].Level != logrus.DebugLevel {
		t.Fatalf("level=%v", entries[1].Level)
	}
}
