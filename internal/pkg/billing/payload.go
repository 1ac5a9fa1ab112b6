package billing

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Payload is a decoded webhook body. Providers nest the same information at
// different depths, so lookups are done by path instead of a fixed struct.
type Payload map[string]interface{}

// ParsePayload decodes body as a JSON object.
func ParsePayload(body []byte) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil || p == nil {
		return nil, ErrInvalidPayload
	}
	return p, nil
}

// Lookup follows a dotted path through nested objects.
func (p Payload) Lookup(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(p)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the first non-empty string (or number rendered as string)
// found at one of paths.
func (p Payload) String(paths ...string) string {
	for _, path := range paths {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

// Time returns the first timestamp found at one of paths. RFC 3339 strings
// and unix seconds or milliseconds are understood.
func (p Payload) Time(paths ...string) *time.Time {
	for _, path := range paths {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		if t, ok := parseTimeValue(v); ok {
			return &t
		}
	}
	return nil
}

func scalarString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return ""
	default:
		return ""
	}
}

func parseTimeValue(v interface{}) (time.Time, bool) {
	raw := scalarString(v)
	if raw == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		if n >= 1_000_000_000_000 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// walk visits every key/value pair of the payload depth first, objects
// before arrays, in a stable key order. fn returning true stops the walk.
func walk(v interface{}, fn func(key string, value interface{}) bool) bool {
	switch x := v.(type) {
	case map[string]interface{}:
		for _, k := range sortedKeys(x) {
			if fn(k, x[k]) {
				return true
			}
		}
		for _, k := range sortedKeys(x) {
			if walk(x[k], fn) {
				return true
			}
		}
	case []interface{}:
		for _, item := range x {
			if walk(item, fn) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
