// Package settings loads the acceptance rules from their YAML file and keeps
// them current while the file changes.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/colonyops/farepilot/internal/core/filter"
)

// EnvPrefix marks environment overrides: FILTER_MIN_AMOUNT -> min_amount.
const EnvPrefix = "FILTER_"

const maxFileSize = 1024 * 1024

// File is the on-disk shape of the filters file.
type File struct {
	Mode               string   `yaml:"mode" koanf:"mode" json:"mode"`
	MinAmount          int      `yaml:"min_amount" koanf:"min_amount" json:"min_amount"`
	KeywordMinAmount   int      `yaml:"keyword_min_amount" koanf:"keyword_min_amount" json:"keyword_min_amount"`
	OriginMinAmount    int      `yaml:"origin_min_amount" koanf:"origin_min_amount" json:"origin_min_amount"`
	Keywords           []string `yaml:"keywords" koanf:"keywords" json:"keywords"`
	OriginAllowList    []string `yaml:"origin_allow_list" koanf:"origin_allow_list" json:"origin_allow_list"`
	ExcludedCategories []string `yaml:"excluded_categories" koanf:"excluded_categories" json:"excluded_categories"`
	Windows            []Window `yaml:"windows,omitempty" koanf:"windows" json:"windows,omitempty"`
}

// Window is a time window written in filter.DateTimeLayout, local time.
type Window struct {
	Start string `yaml:"start" koanf:"start" json:"start"`
	End   string `yaml:"end" koanf:"end" json:"end"`
}

// FromConfig renders c in file form.
func FromConfig(c filter.Config) File {
	f := File{
		Mode:               string(c.Mode),
		MinAmount:          c.MinAmount,
		KeywordMinAmount:   c.KeywordMinAmount,
		OriginMinAmount:    c.OriginMinAmount,
		Keywords:           nonNil(c.Keywords),
		OriginAllowList:    nonNil(c.OriginAllowList),
		ExcludedCategories: nonNil(c.ExcludedCategories),
	}
	for _, w := range c.Windows {
		f.Windows = append(f.Windows, Window{
			Start: w.Start.Format(filter.DateTimeLayout),
			End:   w.End.Format(filter.DateTimeLayout),
		})
	}
	return f
}

// Config converts the file form into filter rules. It does not validate
// the rules themselves.
func (f File) Config() (filter.Config, error) {
	c := filter.Config{
		Mode:               filter.Mode(f.Mode),
		MinAmount:          f.MinAmount,
		KeywordMinAmount:   f.KeywordMinAmount,
		OriginMinAmount:    f.OriginMinAmount,
		Keywords:           trimAll(f.Keywords),
		OriginAllowList:    trimAll(f.OriginAllowList),
		ExcludedCategories: trimAll(f.ExcludedCategories),
	}
	for i, w := range f.Windows {
		start, err := time.ParseInLocation(filter.DateTimeLayout, w.Start, time.Local)
		if err != nil {
			return filter.Config{}, fmt.Errorf("windows[%d].start: %w", i, err)
		}
		end, err := time.ParseInLocation(filter.DateTimeLayout, w.End, time.Local)
		if err != nil {
			return filter.Config{}, fmt.Errorf("windows[%d].end: %w", i, err)
		}
		c.Windows = append(c.Windows, filter.Window{Start: start, End: end})
	}
	return c, nil
}

// Marshal renders f as YAML.
func (f File) Marshal() ([]byte, error) {
	return yamlv3.Marshal(f)
}

// LoadFile reads the filters at path layered over the defaults, then applies
// FILTER_* environment overrides. A missing file yields the defaults plus
// overrides.
func LoadFile(path string) (filter.Config, error) {
	var data []byte
	if path != "" {
		info, err := os.Stat(path)
		switch {
		case err == nil:
			if info.Size() > maxFileSize {
				return filter.Config{}, fmt.Errorf("filters file %s is larger than %d bytes", path, maxFileSize)
			}
			if data, err = os.ReadFile(path); err != nil {
				return filter.Config{}, fmt.Errorf("read filters file: %w", err)
			}
		case !os.IsNotExist(err):
			return filter.Config{}, fmt.Errorf("stat filters file: %w", err)
		}
	}

	c, err := Parse(data)
	if err != nil {
		return filter.Config{}, fmt.Errorf("load filters %s: %w", path, err)
	}
	return c, nil
}

// Parse layers data over the defaults and applies environment overrides.
func Parse(data []byte) (filter.Config, error) {
	k := koanf.New(".")

	defaults, err := FromConfig(filter.Default()).Marshal()
	if err != nil {
		return filter.Config{}, fmt.Errorf("encode defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return filter.Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return filter.Config{}, fmt.Errorf("parse filters: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return filter.Config{}, fmt.Errorf("load environment: %w", err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return filter.Config{}, fmt.Errorf("decode filters: %w", err)
	}
	return f.Config()
}

// Write renders c to path, creating or truncating it.
func Write(path string, c filter.Config) error {
	data, err := FromConfig(c).Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create filters dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
