package attr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the scalar types an entity attribute may
// hold. Only String, Int and Bool implement it.
// There is no float type: attribute values must render identically on every
// run so journal payloads and golden traces stay byte-stable.
type Value interface {
	attrValue() // Sealed
}

// String is a string attribute value.
type String string

func (String) attrValue() {}

// Int is an integer attribute value. Always int64.
type Int int64

func (Int) attrValue() {}

// Bool is a boolean attribute value.
type Bool bool

func (Bool) attrValue() {}

// Attributes maps attribute names to scalar values.
// Use SortedKeys() for deterministic iteration.
type Attributes map[string]Value

// FromStrings builds Attributes where every value is a String.
func FromStrings(m map[string]string) Attributes {
	attrs := make(Attributes, len(m))
	for k, v := range m {
		attrs[k] = String(v)
	}
	return attrs
}

// Clone returns a shallow copy. Values are immutable scalars, so a shallow
// copy is a full copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Merge returns a new map holding a overlaid with patch. Keys absent from
// patch keep their value from a; nothing is removed.
func (a Attributes) Merge(patch Attributes) Attributes {
	out := a.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// StringValue returns the attribute rendered as a string, and whether it exists.
func (a Attributes) StringValue(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	return Format(v), true
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders some keys differently.
func (a Attributes) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Format renders a value the way it is written to a CSV cell or a log line.
func Format(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Parse decodes a "key=value" argument into a key and a value.
//
// Integers and booleans are detected from the literal; anything else is a
// String. "key:=value" forces a String even when the value looks numeric,
// e.g. "zip:=02134".
func Parse(kv string) (string, Value, error) {
	if i := strings.Index(kv, ":="); i > 0 && !strings.Contains(kv[:i], "=") {
		return kv[:i], String(kv[i+2:]), nil
	}

	key, raw, ok := strings.Cut(kv, "=")
	if !ok {
		return "", nil, fmt.Errorf("attribute %q: expected key=value", kv)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil, fmt.Errorf("attribute %q: empty key", kv)
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return key, Int(n), nil
	}
	if raw == "true" || raw == "false" {
		return key, Bool(raw == "true"), nil
	}
	return key, String(raw), nil
}

// ParseAll decodes a list of "key=value" arguments into Attributes.
// Later keys override earlier ones.
func ParseAll(kvs []string) (Attributes, error) {
	attrs := make(Attributes, len(kvs))
	for _, kv := range kvs {
		k, v, err := Parse(kv)
		if err != nil {
			return nil, err
		}
		attrs[k] = v
	}
	return attrs, nil
}

// FromAny converts a decoded YAML/JSON scalar into a Value.
// Floats are rejected unless they hold an integral value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer out of range: %d", val)
		}
		return Int(int64(val)), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not allowed: %s", val)
		}
		return Int(n), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not allowed: %v", val)
		}
		return Int(int64(val)), nil
	case nil:
		return nil, fmt.Errorf("null is not allowed")
	default:
		return nil, fmt.Errorf("unsupported attribute type: %T", v)
	}
}

// FromMap converts a decoded map into Attributes.
func FromMap(m map[string]any) (Attributes, error) {
	attrs := make(Attributes, len(m))
	for k, v := range m {
		val, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = val
	}
	return attrs, nil
}

// MarshalJSON renders the map with keys in canonical order.
// This is not canonical JSON (HTML characters are escaped); use
// MarshalCanonical for journal payloads.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalValue(a[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of scalars, rejecting floats and null.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	attrs, err := FromMap(raw)
	if err != nil {
		return err
	}
	*a = attrs
	return nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown attribute value type: %T", v)
	}
}
