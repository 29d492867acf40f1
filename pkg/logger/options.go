package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Option adjusts how New builds the logger.
type Option func(*settings)

type settings struct {
	level      slog.Level
	format     Format
	out        io.Writer
	static     []slog.Attr
	extractors []ContextExtractor
}

// WithLevelName sets the minimum level from a name such as "debug" or
// "WARN". Empty or unknown names keep the current level.
func WithLevelName(name string) Option {
	return func(s *settings) {
		var l slog.Level
		if name != "" && l.UnmarshalText([]byte(strings.ToUpper(name))) == nil {
			s.level = l
		}
	}
}

// WithFormat selects JSON or text output. Any other value panics.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unknown format %q", f))
	}
	return func(s *settings) { s.format = f }
}

// WithOutput redirects records to w. A nil writer is ignored.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

// WithAttr attaches attrs to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.static = append(s.static, attrs...) }
}

// WithContextExtractors adds per-call attributes taken from the context.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, ex := range extractors {
			if ex != nil {
				s.extractors = append(s.extractors, ex)
			}
		}
	}
}

// WithContextValue logs ctx.Value(key) under name when it is set.
func WithContextValue(name string, key any) Option {
	if name == "" || key == nil {
		return func(*settings) {}
	}
	return WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
		v := ctx.Value(key)
		return slog.Any(name, v), v != nil
	})
}

// environments maps accepted APP_ENV spellings to their canonical name and
// output defaults.
var environments = map[string]struct {
	name   string
	level  slog.Level
	format Format
}{
	"production":  {EnvProduction, slog.LevelInfo, FormatJSON},
	"prod":        {EnvProduction, slog.LevelInfo, FormatJSON},
	"staging":     {EnvStaging, slog.LevelInfo, FormatJSON},
	"stage":       {EnvStaging, slog.LevelInfo, FormatJSON},
	"development": {EnvDevelopment, slog.LevelDebug, FormatText},
}

// WithEnvironment sets level and format for env and tags every record with
// the environment and service names. Unrecognised environments are treated
// as development. Later options still override level and format.
func WithEnvironment(env, service string) Option {
	return func(s *settings) {
		e, ok := environments[strings.ToLower(env)]
		if !ok {
			e = environments[EnvDevelopment]
		}
		s.level, s.format = e.level, e.format
		if service != "" {
			s.static = append(s.static, Component(service))
		}
		s.static = append(s.static, slog.String("env", e.name))
	}
}
