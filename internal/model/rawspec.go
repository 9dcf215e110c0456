package model

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// RawKind tags the shape held by a RawValue.
type RawKind int

const (
	RawString RawKind = iota
	RawList
	RawMap
)

// RawValue is an extracted vendor value: a string, a list of strings, or a
// nested mapping. The zero value is the empty string.
type RawValue struct {
	Kind RawKind
	Str  string
	List []string
	Map  map[string]RawValue
}

// Str returns a string RawValue.
func Str(s string) RawValue { return RawValue{Kind: RawString, Str: s} }

// List returns a list RawValue.
func List(items ...string) RawValue { return RawValue{Kind: RawList, List: items} }

// Nested returns a mapping RawValue.
func Nested(m map[string]RawValue) RawValue { return RawValue{Kind: RawMap, Map: m} }

// String flattens the value into a single string suitable for parsing.
func (v RawValue) String() string {
	switch v.Kind {
	case RawList:
		return strings.Join(v.List, ", ")
	case RawMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+v.Map[k].String())
		}
		return strings.Join(parts, "; ")
	default:
		return v.Str
	}
}

// IsEmpty reports whether the value carries no content.
func (v RawValue) IsEmpty() bool {
	switch v.Kind {
	case RawList:
		return len(v.List) == 0
	case RawMap:
		return len(v.Map) == 0
	default:
		return strings.TrimSpace(v.Str) == ""
	}
}

// MarshalJSON encodes the value in its natural JSON shape.
func (v RawValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case RawList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case RawMap:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON accepts strings, arrays, objects and bare scalars. Array
// elements and scalars that are not strings are kept in their JSON text form.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*v = Str("")
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode raw string")
		}
		*v = Str(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return eris.Wrap(err, "model: decode raw list")
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				out = append(out, s)
				continue
			}
			out = append(out, strings.TrimSpace(string(item)))
		}
		*v = List(out...)
	case '{':
		var m map[string]RawValue
		if err := json.Unmarshal(data, &m); err != nil {
			return eris.Wrap(err, "model: decode raw map")
		}
		*v = Nested(m)
	default:
		*v = Str(trimmed)
	}
	return nil
}

// RawSpecMap maps a composite vendor key to its extracted value.
type RawSpecMap map[string]RawValue

// Clone returns a shallow copy of the map.
func (m RawSpecMap) Clone() RawSpecMap {
	out := make(RawSpecMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the map's keys in sorted order.
func (m RawSpecMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge overlays other onto a copy of m; keys in other win.
func (m RawSpecMap) Merge(other RawSpecMap) RawSpecMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}
