// Package apex adapts github.com/apex/log to fetchcache.Logger.
package apex

import (
	"github.com/apex/log"

	"github.com/unkn0wn-root/fetchcache"
)

var _ fetchcache.Logger = Logger{}

// Logger logs through I, or the apex package-level logger when I is nil.
type Logger struct{ I log.Interface }

func (a Logger) Debug(msg string, f fetchcache.Fields) { a.entry(f).Debug(msg) }
func (a Logger) Info(msg string, f fetchcache.Fields)  { a.entry(f).Info(msg) }
func (a Logger) Warn(msg string, f fetchcache.Fields)  { a.entry(f).Warn(msg) }
func (a Logger) Error(msg string, f fetchcache.Fields) { a.entry(f).Error(msg) }

func (a Logger) entry(f fetchcache.Fields) *log.Entry {
	i := a.I
	if i == nil {
		i = log.Log
	}
	fields := make(log.Fields, len(f))
	for k, v := range f {
		fields[k] = v
	}
	return i.WithFields(fields)
}
