// Package config loads config.toml and AUIKIT_* environment variables through
// viper and decodes typed sections for the rest of the module.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	DefaultFile      = "config.toml"
	DefaultEnvPrefix = "AUIKIT"
)

type options struct {
	file      string
	kind      string
	envPrefix string
	optional  bool
	overrides map[string]any
}

type Option func(*options)

// WithFile reads path instead of config.toml.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

func WithType(kind string) Option {
	return func(o *options) {
		o.kind = kind
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithRequired fails loading when the file is missing.
func WithRequired() Option {
	return func(o *options) {
		o.optional = false
	}
}

// WithOverride forces key to value above file, env and defaults.
func WithOverride(key string, value any) Option {
	return func(o *options) {
		if o.overrides == nil {
			o.overrides = map[string]any{}
		}
		o.overrides[key] = value
	}
}

// New builds a viper instance. A missing file is fine unless WithRequired is
// given; environment variables such as AUIKIT_REALTIME_BROKER_MODE always apply.
func New(opts ...Option) (*viper.Viper, error) {
	o := options{
		file:      DefaultFile,
		kind:      "toml",
		envPrefix: DefaultEnvPrefix,
		optional:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if o.file != "" {
		v.SetConfigFile(o.file)
		v.SetConfigType(o.kind)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !o.optional || !(errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)) {
				return nil, fmt.Errorf("config: read %s: %w", o.file, err)
			}
		}
	}
	for k, val := range o.overrides {
		v.Set(k, val)
	}
	return v, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads the section under key into T. Struct fields take their
// `default` tag when neither the file nor the environment sets them, and the
// result is checked against its `validate` tags.
func Decode[T any](v *viper.Viper, key string) (T, error) {
	var out T

	t := reflect.TypeOf(out)
	if t == nil || t.Kind() != reflect.Struct {
		if err := v.UnmarshalKey(key, &out); err != nil {
			return out, fmt.Errorf("config: decode %s: %w", key, err)
		}
		return out, nil
	}

	applyDefaults(v, key, t)
	data := collect(v, key, t)

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(data); err != nil {
		return out, fmt.Errorf("config: decode %s: %w", key, err)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("config: validate %s: %w", key, err)
	}
	return out, nil
}

func applyDefaults(v *viper.Viper, prefix string, t reflect.Type) {
	walk(prefix, t, func(key string, field reflect.StructField) {
		if def, ok := field.Tag.Lookup("default"); ok {
			v.SetDefault(key, def)
		}
	})
}

// collect builds the nested map for a section from viper.Get, which is the
// only lookup that consults AutomaticEnv for keys absent from the file.
func collect(v *viper.Viper, prefix string, t reflect.Type) map[string]any {
	out := make(map[string]any)
	walk(prefix, t, func(key string, _ reflect.StructField) {
		val := v.Get(key)
		if val == nil {
			return
		}
		rel := strings.TrimPrefix(key, prefix+".")
		if prefix == "" {
			rel = key
		}
		put(out, strings.Split(rel, "."), val)
	})
	return out
}

func put(m map[string]any, path []string, val any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = val
}

// walk calls fn for every leaf field of t with its dotted key.
func walk(prefix string, t reflect.Type, fn func(key string, field reflect.StructField)) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			walk(key, ft, fn)
			continue
		}
		fn(key, field)
	}
}
