package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Parse decodes JSON text into a Value, preserving mapping key order and
// number literals. Syntax errors are returned as produced by encoding/json so
// callers can classify them (for example, truncated input).
func Parse(data []byte) (*Value, error) {
	// Validate the whole input first: this rejects trailing data and yields
	// *json.SyntaxError values with their usual messages.
	if err := json.Unmarshal(data, new(json.RawMessage)); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return decodeValue(dec)
}

// ParseString is Parse for string input.
func ParseString(s string) (*Value, error) {
	return Parse([]byte(s))
}

// MustParse parses s and panics on error. Intended for tests and literals.
func MustParse(s string) *Value {
	v, err := ParseString(s)
	if err != nil {
		panic(fmt.Sprintf("document: MustParse(%q): %v", s, err))
	}
	return v
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := Mapping()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("document: mapping key is %T, want string", kt)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			seq := Sequence()
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				seq.Append(item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		default:
			return nil, fmt.Errorf("document: unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return nil, fmt.Errorf("document: unexpected token %T", tok)
	}
}

// MarshalJSON encodes v compactly with mapping keys in insertion order.
// HTML characters are not escaped, so non-ASCII and markup survive verbatim.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes JSON into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// MarshalIndent encodes v with the given indentation.
func (v *Value) MarshalIndent(prefix, indent string) ([]byte, error) {
	compact, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, prefix, indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if !json.Valid([]byte(v.str)) {
			return fmt.Errorf("document: invalid number literal %q", v.str)
		}
		buf.WriteString(v.str)
	case KindString:
		return encodeString(buf, v.str)
	case KindSequence:
		buf.WriteByte('[')
		for i, it := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := v.fields[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
