// Package logrus adapts a logrus entry to fetchcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/fetchcache"
)

var _ fetchcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with a "component" field.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "fetchcache")}
}

func (l Logger) Debug(msg string, f fetchcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f fetchcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f fetchcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f fetchcache.Fields) { l.with(f).Error(msg) }

// with maps an "err" field onto logrus' error key.
func (l Logger) with(f fetchcache.Fields) *logrus.Entry {
	e := l.E
	if len(f) == 0 {
		return e
	}
	fields := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		fields[k] = v
	}
	return e.WithFields(fields)
}
