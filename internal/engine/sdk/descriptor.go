package sdk

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Descriptor identifies an engine and the documents it accepts.
type Descriptor struct {
	// Name identifies the engine in aggregates and health reports.
	Name string `json:"name" yaml:"name"`

	// Version is the engine version reported in result metadata.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// FileTypes lists accepted extensions such as ".png".
	FileTypes []string `json:"file_types" yaml:"file_types"`

	// Options are engine-specific settings, opaque to the manager.
	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// Validate checks if the descriptor is usable.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: engine name is required", ErrInvalidConfig)
	}
	if len(d.FileTypes) == 0 {
		return fmt.Errorf("%w: engine %s declares no file types", ErrInvalidConfig, d.Name)
	}
	return nil
}

// Normalized returns a copy with canonical file types.
func (d Descriptor) Normalized() Descriptor {
	d.FileTypes = NormalizeFileTypes(d.FileTypes)
	if d.Options == nil {
		d.Options = Options{}
	}
	return d
}

// Supports reports whether the file's extension is accepted.
func (d Descriptor) Supports(path string) bool {
	return slices.Contains(d.FileTypes, strings.ToLower(filepath.Ext(path)))
}

// NormalizeFileTypes lower-cases extensions, adds the leading dot, and drops duplicates.
func NormalizeFileTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Options holds engine settings decoded from YAML, JSON, or code.
type Options map[string]any

// Get retrieves an option value by key.
func (o Options) Get(key string) any {
	return o[key]
}

// Has checks if an option key exists.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// GetString retrieves a string option, or def when absent.
func (o Options) GetString(key, def string) string {
	switch v := o[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case fmt.Stringer:
		return v.String()
	case int, int64, float64:
		return fmt.Sprint(v)
	}
	return def
}

// GetInt retrieves an integer option, or def when absent.
func (o Options) GetInt(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// GetBool retrieves a boolean option, or def when absent.
func (o Options) GetBool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// GetDuration retrieves a duration option.
// The value should be a string parseable by time.ParseDuration.
func (o Options) GetDuration(key string, def time.Duration) time.Duration {
	if v, ok := o[key].(string); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// GetStringSlice retrieves a string slice option.
func (o Options) GetStringSlice(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// GetOptions retrieves a nested option map.
func (o Options) GetOptions(key string) Options {
	switch v := o[key].(type) {
	case Options:
		return v
	case map[string]any:
		return Options(v)
	}
	return Options{}
}

// Merge merges other into a copy of o. Values from other take precedence.
func (o Options) Merge(other Options) Options {
	merged := make(Options, len(o)+len(other))
	for k, v := range o {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}
