// Package document provides the recursive value type that model responses are
// recovered into: strings, numbers, booleans, null, ordered sequences and
// mappings from string keys to values.
package document

import (
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

// Kind constants enumerate the Value variants.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindSequence
	KindMapping
)

// String returns the lowercase variant name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the document variants.
// A nil *Value behaves as null for every read accessor.
type Value struct {
	kind Kind

	// str holds the string payload, or the literal text of a number.
	str string
	b   bool

	items []*Value

	// keys keeps insertion order; fields is the lookup table.
	keys   []string
	fields map[string]*Value
}

// Null returns a null value.
func Null() *Value { return &Value{kind: KindNull} }

// String returns a string leaf.
func String(s string) *Value { return &Value{kind: KindString, str: s} }

// Number returns a number leaf holding the given literal text.
func Number(literal string) *Value { return &Value{kind: KindNumber, str: literal} }

// Int returns a number leaf for an integer.
func Int(n int) *Value { return Number(strconv.Itoa(n)) }

// Bool returns a boolean leaf.
func Bool(b bool) *Value { return &Value{kind: KindBool, b: b} }

// Sequence returns a sequence holding items in order.
func Sequence(items ...*Value) *Value {
	seq := &Value{kind: KindSequence, items: make([]*Value, 0, len(items))}
	for _, it := range items {
		seq.Append(it)
	}
	return seq
}

// Mapping returns an empty mapping.
func Mapping() *Value {
	return &Value{kind: KindMapping, fields: make(map[string]*Value)}
}

// Kind reports the variant held by v.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

// IsNull reports whether v is nil or holds null.
func (v *Value) IsNull() bool { return v.Kind() == KindNull }

// Str returns the string payload and whether v is a string.
func (v *Value) Str() (string, bool) {
	if v.Kind() != KindString {
		return "", false
	}
	return v.str, true
}

// Literal returns the literal text of a number.
func (v *Value) Literal() (string, bool) {
	if v.Kind() != KindNumber {
		return "", false
	}
	return v.str, true
}

// Boolean returns the boolean payload and whether v is a boolean.
func (v *Value) Boolean() (bool, bool) {
	if v.Kind() != KindBool {
		return false, false
	}
	return v.b, true
}

// IntValue returns v as an int when it is an integral number, or a string
// holding one.
func (v *Value) IntValue() (int, bool) {
	switch v.Kind() {
	case KindNumber, KindString:
		n, err := strconv.Atoi(v.str)
		if err == nil {
			return n, true
		}
		if v.kind == KindNumber {
			f, ferr := strconv.ParseFloat(v.str, 64)
			if ferr == nil && f == float64(int(f)) {
				return int(f), true
			}
		}
	}
	return 0, false
}

// Text renders a scalar for display: strings verbatim, numbers as their
// literal, booleans as true/false, null as "". Containers render as compact JSON.
func (v *Value) Text() string {
	switch v.Kind() {
	case KindNull:
		return ""
	case KindString, KindNumber:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// SetString replaces the payload of a string leaf. It is a no-op on any
// other variant, so callers cannot change the shape of a document with it.
func (v *Value) SetString(s string) {
	if v.Kind() == KindString {
		v.str = s
	}
}

// Len returns the number of items in a sequence or keys in a mapping.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindSequence:
		return len(v.items)
	case KindMapping:
		return len(v.keys)
	default:
		return 0
	}
}

// Index returns the i-th item of a sequence, or nil when out of range.
func (v *Value) Index(i int) *Value {
	if v.Kind() != KindSequence || i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Items returns the items of a sequence. The slice must not be modified.
func (v *Value) Items() []*Value {
	if v.Kind() != KindSequence {
		return nil
	}
	return v.items
}

// Append adds an item to a sequence. A nil item is stored as null.
func (v *Value) Append(item *Value) {
	if v.Kind() != KindSequence {
		return
	}
	if item == nil {
		item = Null()
	}
	v.items = append(v.items, item)
}

// Keys returns mapping keys in insertion order. The slice must not be modified.
func (v *Value) Keys() []string {
	if v.Kind() != KindMapping {
		return nil
	}
	return v.keys
}

// Get returns the value stored under key, or nil when absent.
func (v *Value) Get(key string) *Value {
	if v.Kind() != KindMapping {
		return nil
	}
	return v.fields[key]
}

// Has reports whether a mapping contains key.
func (v *Value) Has(key string) bool {
	if v.Kind() != KindMapping {
		return false
	}
	_, ok := v.fields[key]
	return ok
}

// Set stores val under key. An existing key keeps its position.
func (v *Value) Set(key string, val *Value) {
	if v.Kind() != KindMapping {
		return
	}
	if val == nil {
		val = Null()
	}
	if _, ok := v.fields[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.fields[key] = val
}

// Clone returns an independent deep copy of v.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{kind: v.kind, str: v.str, b: v.b}
	switch v.kind {
	case KindSequence:
		out.items = make([]*Value, len(v.items))
		for i, it := range v.items {
			out.items[i] = it.Clone()
		}
	case KindMapping:
		out.keys = make([]string, len(v.keys))
		copy(out.keys, v.keys)
		out.fields = make(map[string]*Value, len(v.fields))
		for k, f := range v.fields {
			out.fields[k] = f.Clone()
		}
	}
	return out
}

// Walk visits v and every descendant in document order: mappings key by key,
// sequences by position. Returning false from fn skips the node's children.
func (v *Value) Walk(fn func(node *Value) bool) {
	if v == nil {
		return
	}
	if !fn(v) {
		return
	}
	switch v.kind {
	case KindSequence:
		for _, it := range v.items {
			it.Walk(fn)
		}
	case KindMapping:
		for _, k := range v.keys {
			v.fields[k].Walk(fn)
		}
	}
}
