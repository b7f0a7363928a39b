package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is a natal chart as produced by the external chart service. It is
// treated as loosely structured, read-only data.
type Record map[string]any

// Decode parses a JSON document into a Record.
func Decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	return rec, nil
}

func firstKey(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return map[string]any(t), true
	}
	return nil, false
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// asHouse accepts whole numbers 1..12 only.
func asHouse(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) || f < 1 || f > 12 {
		return 0, false
	}
	return int(f), true
}

func asSign(v any) (Sign, bool) {
	if s, ok := asString(v); ok {
		return ParseSign(s)
	}
	if m, ok := asMap(v); ok {
		if inner, ok := firstKey(m, "code", "sign", "name"); ok {
			return asSign(inner)
		}
	}
	return "", false
}
