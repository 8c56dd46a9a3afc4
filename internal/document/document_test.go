package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind Kind
	}{
		{"null", `null`, KindNull},
		{"string", `"hello"`, KindString},
		{"number", `12.50`, KindNumber},
		{"bool", `true`, KindBool},
		{"sequence", `[1, "a", null]`, KindSequence},
		{"mapping", `{"a": {"b": []}}`, KindMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestParse_PreservesKeyOrderAndLiterals(t *testing.T) {
	v, err := ParseString(`{"z": 1.50, "a": [true, null], "m": "שכר מצוה <b>"}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, v.Keys())

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1.50,"a":[true,null],"m":"שכר מצוה <b>"}`, string(out))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantMsg string
	}{
		{"empty", ``, "unexpected end of JSON input"},
		{"truncated object", `{"a": [1, 2`, "unexpected end of JSON input"},
		{"trailing comma", `{"a": 1,}`, "invalid character"},
		{"trailing garbage", `{"a": 1} tail`, "invalid character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.in)
			require.Error(t, err)
			var syntaxErr *json.SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParse_DuplicateKeyKeepsFirstPosition(t *testing.T) {
	v := MustParse(`{"a": 1, "b": 2, "a": 3}`)

	assert.Equal(t, []string{"a", "b"}, v.Keys())
	lit, ok := v.Get("a").Literal()
	require.True(t, ok)
	assert.Equal(t, "3", lit)
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		`{}`,
		`[]`,
		`{"meta":{"page_number":37,"continues_from":{"flag":false}},"data":[{"type":"section","paragraphs":[{"text":"א","is_makor":true}]}]}`,
		`[1,-2.5e3,"x\"y",null,false]`,
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			v := MustParse(in)
			out, err := v.MarshalJSON()
			require.NoError(t, err)

			again, err := Parse(out)
			require.NoError(t, err)
			assert.True(t, Equal(v, again))
			assert.JSONEq(t, in, string(out))
		})
	}
}

func TestMarshalIndent(t *testing.T) {
	v := MustParse(`{"a":[1,2],"b":"c"}`)

	out, err := v.MarshalIndent("", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [\n    1,\n    2\n  ],\n  \"b\": \"c\"\n}", string(out))
}

func TestValue_EmbeddedInStruct(t *testing.T) {
	type record struct {
		Page   int    `json:"page"`
		Parsed *Value `json:"parsed_json"`
	}

	data := []byte(`{"page": 3, "parsed_json": {"k": ["v"]}}`)
	var r record
	require.NoError(t, json.Unmarshal(data, &r))
	require.NotNil(t, r.Parsed)
	assert.Equal(t, KindMapping, r.Parsed.Kind())

	var empty record
	require.NoError(t, json.Unmarshal([]byte(`{"page": 4, "parsed_json": null}`), &empty))
	assert.Nil(t, empty.Parsed)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(out))
}

func TestClone_IsIndependent(t *testing.T) {
	orig := MustParse(`{"text": "the cat", "list": ["cat"]}`)
	cp := orig.Clone()

	cp.Get("text").SetString("changed")
	cp.Get("list").Index(0).SetString("changed")
	cp.Set("extra", String("x"))

	assert.Equal(t, "the cat", orig.Get("text").Text())
	assert.Equal(t, "cat", orig.Get("list").Index(0).Text())
	assert.False(t, orig.Has("extra"))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"key order ignored", `{"a":1,"b":2}`, `{"b":2,"a":1}`, true},
		{"numeric value", `[1]`, `[1.0]`, true},
		{"different strings", `"a"`, `"b"`, false},
		{"different lengths", `[1,2]`, `[1]`, false},
		{"missing key", `{"a":1}`, `{"b":1}`, false},
		{"kind mismatch", `"1"`, `1`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(MustParse(tt.a), MustParse(tt.b)))
		})
	}

	assert.True(t, Equal(nil, Null()))
}

func TestSameShape(t *testing.T) {
	assert.True(t, SameShape(MustParse(`{"a":["x",{"b":"y"}]}`), MustParse(`{"a":["z",{"b":"w"}]}`)))
	assert.False(t, SameShape(MustParse(`{"a":["x"]}`), MustParse(`{"a":["x","y"]}`)))
	assert.False(t, SameShape(MustParse(`{"a":"x"}`), MustParse(`{"a":1}`)))
}

func TestWalk_DocumentOrder(t *testing.T) {
	v := MustParse(`{"b":"1","a":["2",{"c":"3"}]}`)

	var seen []string
	v.Walk(func(n *Value) bool {
		if s, ok := n.Str(); ok {
			seen = append(seen, s)
		}
		return true
	})

	assert.Equal(t, []string{"1", "2", "3"}, seen)
}

func TestSetString_IgnoresNonStrings(t *testing.T) {
	n := Int(5)
	n.SetString("x")
	assert.Equal(t, KindNumber, n.Kind())
	assert.Equal(t, "5", n.Text())
}

func TestIntValue(t *testing.T) {
	tests := []struct {
		in   *Value
		want int
		ok   bool
	}{
		{Int(37), 37, true},
		{Number("12.0"), 12, true},
		{String("40"), 40, true},
		{String("forty"), 0, false},
		{Null(), 0, false},
	}

	for _, tt := range tests {
		got, ok := tt.in.IntValue()
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}
