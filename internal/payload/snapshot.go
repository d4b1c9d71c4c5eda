package payload

import (
	"math"
	"sort"
	"strconv"
)

// Snapshot is the flat attribute map decoded from one state message.
// JSON numbers are held as float64.
type Snapshot map[string]any

// Number returns the value of key as a float64. Numeric strings are
// accepted; booleans map to 0 and 1.
func (s Snapshot) Number(key string) (float64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Int returns the value of key truncated to an int.
func (s Snapshot) Int(key string) (int, bool) {
	f, ok := s.Number(key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Has reports whether key is present.
func (s Snapshot) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the attribute names in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
