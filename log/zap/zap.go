// Package zap adapts go.uber.org/zap to aliascache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/aliascache"
)

type Logger struct{ L *zap.Logger }

var _ aliascache.Logger = Logger{}

// New names l "aliascache" so cache logs can be filtered.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("aliascache")} }

func (z Logger) Debug(msg string, f aliascache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f aliascache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f aliascache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f aliascache.Fields) { z.L.Error(msg, zf(f)...) }

// zf orders fields by key so output is stable across runs.
func zf(f aliascache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
