// Package logrus adapts a *logrus.Entry to shopcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/shopcache"
)

var _ shopcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=shopcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "shopcache")}
}

func (l Logger) with(f shopcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		// logrus renders errors only under ErrorKey
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}

func (l Logger) Debug(msg string, f shopcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f shopcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f shopcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f shopcache.Fields) { l.with(f).Error(msg) }
