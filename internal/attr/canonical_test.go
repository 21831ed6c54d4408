package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapped map[string]any

func (m mapped) AsMap() map[string]any { return m }

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "string", in: "hello", want: `"hello"`},
		{name: "no html escaping", in: String("<a&b>"), want: `"<a&b>"`},
		{name: "int", in: Int(-12), want: `-12`},
		{name: "bool", in: true, want: `true`},
		{name: "attributes sorted", in: Attributes{"b": Int(2), "a": String("x")}, want: `{"a":"x","b":2}`},
		{name: "mapper", in: mapped{"z": "last", "id": "1"}, want: `{"id":"1","z":"last"}`},
		{name: "array", in: []any{"a", 1, false}, want: `["a",1,false]`},
		{name: "control chars escaped", in: "a\nb", want: `"a\nb"`},
		{name: "line separator literal", in: "a\u2028b", want: "\"a\u2028b\""},
		{name: "escaped backslash kept", in: `\u2028`, want: `"\\u2028"`},
		// "e" followed by U+0301 combining acute normalizes to U+00E9.
		{name: "nfc", in: "e\u0301", want: "\"\u00e9\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	for _, in := range []any{nil, 1.5, float32(2), struct{}{}, map[string]any{"k": nil}} {
		_, err := MarshalCanonical(in)
		assert.Error(t, err, "%#v", in)
	}
}
