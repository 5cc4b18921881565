package carrier

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is a decoded JSON object whose shape the carrier does not keep
// stable across API versions.
type Document map[string]any

// Lookup resolves a dotted path such as "response.data.label_url".
// Numeric segments index into arrays.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case Document:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// FirstString returns the first path that holds a non-null, non-empty
// scalar, rendered as text.
func (d Document) FirstString(paths ...string) (string, bool) {
	for _, p := range paths {
		v, ok := d.Lookup(p)
		if !ok {
			continue
		}
		if s, ok := Stringify(v); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Object returns the nested object at path, if there is one.
func (d Document) Object(path string) (map[string]any, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, false
	}
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// Stringify renders a decoded JSON scalar as text. Nil, objects and arrays
// are not scalars.
func Stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
