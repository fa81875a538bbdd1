package log

import "go.uber.org/zap/zapcore"

// FilterFieldsCore drops fields with matching keys before writing to the core.
func FilterFieldsCore(core zapcore.Core, dropKeys ...string) zapcore.Core {
	drop := make(map[string]struct{}, len(dropKeys))
	for _, key := range dropKeys {
		if key != "" {
			drop[key] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return core
	}
	return filterFieldsCore{Core: core, drop: drop}
}

type filterFieldsCore struct {
	zapcore.Core
	drop map[string]struct{}
}

func (c filterFieldsCore) With(fields []zapcore.Field) zapcore.Core {
	return filterFieldsCore{Core: c.Core.With(c.filter(fields)), drop: c.drop}
}

// Check registers c itself, not the wrapped core, so Write sees every entry.
func (c filterFieldsCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c filterFieldsCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, c.filter(fields))
}

func (c filterFieldsCore) filter(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(fields))
	for _, field := range fields {
		if _, ok := c.drop[field.Key]; !ok {
			out = append(out, field)
		}
	}
	return out
}
