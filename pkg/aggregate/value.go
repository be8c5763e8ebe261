package aggregate

import (
	"strconv"
	"strings"
)

// Kind identifies the shape held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindMap
	KindList
)

const pathSeparator = "."

// Value is a tree-shaped value: a number, string, bool, map, list or null.
// Entities expose their fields as a Value so rankings can address them by
// dotted path without reflection.
type Value struct {
	kind  Kind
	num   float64
	str   string
	flag  bool
	items map[string]Value
	list  []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number wraps a float.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int wraps an int.
func Int(i int) Value { return Number(float64(i)) }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Map wraps a mapping. The map is not copied.
func Map(m map[string]Value) Value { return Value{kind: KindMap, items: m} }

// List wraps a sequence.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// IntMap converts a window map such as commit counts.
func IntMap(m map[string]int) Value {
	items := make(map[string]Value, len(m))
	for k, v := range m {
		items[k] = Int(v)
	}

	return Map(items)
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Tree returns v itself, so a bare Value can be ranked.
func (v Value) Tree() Value { return v }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}

	return v.num, true
}

// Str returns the string payload.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}

	return v.str, true
}

// Get returns the child stored under key, or null.
func (v Value) Get(key string) Value {
	child, _ := v.child(key)

	return child
}

// Lookup resolves a dotted path such as "commits.last_365_days". List
// elements are addressed by index. The bool is false when any segment is
// missing.
func (v Value) Lookup(path string) (Value, bool) {
	if path == "" {
		return v, true
	}

	cur := v

	for _, segment := range strings.Split(path, pathSeparator) {
		next, ok := cur.child(segment)
		if !ok {
			return Null(), false
		}

		cur = next
	}

	return cur, true
}

func (v Value) child(key string) (Value, bool) {
	switch v.kind {
	case KindMap:
		child, ok := v.items[key]

		return child, ok
	case KindList:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(v.list) {
			return Null(), false
		}

		return v.list[idx], true
	default:
		return Null(), false
	}
}
