package document

import "strconv"

// Equal reports whether a and b hold the same value. Mapping key order is
// ignored; numbers compare by value when their literals differ (1 == 1.0).
func Equal(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}

	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.str == b.str
	case KindNumber:
		if a.str == b.str {
			return true
		}
		fa, errA := strconv.ParseFloat(a.str, 64)
		fb, errB := strconv.ParseFloat(b.str, 64)
		return errA == nil && errB == nil && fa == fb
	case KindSequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.fields[k]
			if !ok || !Equal(a.fields[k], bv) {
				return false
			}
		}
		return true
	}
	return false
}

// SameShape reports whether a and b have identical structure: the same
// variant at every position, the same mapping key sets and the same sequence
// lengths. Leaf payloads are not compared.
func SameShape(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindSequence:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !SameShape(a.items[i], b.items[i]) {
				return false
			}
		}
	case KindMapping:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.fields[k]
			if !ok || !SameShape(a.fields[k], bv) {
				return false
			}
		}
	}
	return true
}
