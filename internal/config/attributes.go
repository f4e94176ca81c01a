package config

import (
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"overseer/pkg/logging"
)

// Attributes is the typed key/value store of a server instance. Values come from YAML and
// are converted on read; every getter takes the default used when the key is absent or
// cannot be converted.
//
// Attributes is immutable after construction and safe for concurrent reads.
type Attributes struct {
	values map[string]interface{}
}

// NewAttributes copies values into a new Attributes store.
func NewAttributes(values map[string]interface{}) Attributes {
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Attributes{values: copied}
}

// Has reports whether key is set.
func (a Attributes) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// String returns the attribute as a string.
func (a Attributes) String(key, def string) string {
	v, ok := a.values[key]
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		logging.Warn("Attributes", "Attribute %s is not a string (%T), using default", key, v)
		return def
	}
	return s
}

// Int returns the attribute as an int.
func (a Attributes) Int(key string, def int) int {
	v, ok := a.values[key]
	if !ok || v == nil {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		logging.Warn("Attributes", "Attribute %s is not an integer (%v), using default %d", key, v, def)
		return def
	}
	return i
}

// Bool returns the attribute as a bool.
func (a Attributes) Bool(key string, def bool) bool {
	v, ok := a.values[key]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the attribute as a duration. Strings are parsed with units ("90s",
// "500ms"); plain numbers are seconds.
func (a Attributes) Duration(key string, def time.Duration) time.Duration {
	v, ok := a.values[key]
	if !ok || v == nil {
		return def
	}
	switch v.(type) {
	case string:
		d, err := cast.ToDurationE(v)
		if err != nil {
			logging.Warn("Attributes", "Attribute %s is not a duration (%v), using default %s", key, v, def)
			return def
		}
		return d
	default:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return def
		}
		return time.Duration(secs * float64(time.Second))
	}
}

// StringSlice returns a list attribute. A comma separated string is split.
func (a Attributes) StringSlice(key string, def []string) []string {
	v, ok := a.values[key]
	if !ok || v == nil {
		return def
	}
	if s, isString := v.(string); isString {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return def
	}
	return out
}

// Keys returns the attribute keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the raw values, used as template data.
func (a Attributes) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}
