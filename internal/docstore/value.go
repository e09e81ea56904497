package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInteger
	KindBoolean
	KindArray
)

// Value is one typed document field: a string, an integer, a boolean,
// or an array whose elements are JSON-encoded strings.
type Value struct {
	kind  Kind
	str   string
	num   int64
	flag  bool
	items []string
}

// Fields maps field names to typed values.
type Fields map[string]Value

// Document is a stored record with its store-assigned id.
type Document struct {
	ID     string
	Fields Fields
}

// Constructors and accessors for the tagged variants.
func StringField(s string) Value { return Value{kind: KindString, str: s} }
func IntegerField(n int64) Value { return Value{kind: KindInteger, num: n} }
func BooleanField(b bool) Value  { return Value{kind: KindBoolean, flag: b} }
func (v Value) Kind() Kind       { return v.kind }
func (v Value) Items() []string  { return append([]string(nil), v.items...) }
func (v Value) Str() string      { return v.str }
func (v Value) Int() int64       { return v.num }
func (v Value) Bool() bool       { return v.flag }
func (v Value) IsValid() bool    { return v.kind != KindInvalid }
func (k Kind) String() string    { return kindNames[k] }

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindString:  "string",
	KindInteger: "integer",
	KindBoolean: "boolean",
	KindArray:   "array",
}

// ArrayField JSON-encodes each element into the array.
func ArrayField(elems ...any) (Value, error) {
	items := make([]string, 0, len(elems))
	for i, e := range elems {
		b, err := json.Marshal(e)
		if err != nil {
			return Value{}, fmt.Errorf("array element %d: %w", i, err)
		}
		items = append(items, string(b))
	}
	return Value{kind: KindArray, items: items}, nil
}

// Encode applies the field-typing policy to a generic record: strings, integers and
// booleans map to their own kinds, floats are truncated to integers, slices become
// arrays and anything else is stored as JSON text.
func Encode(record map[string]any) (Fields, error) {
	fields := make(Fields, len(record))
	for key, raw := range record {
		v, err := encodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields[key] = v
	}
	return fields, nil
}

func encodeValue(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return StringField(v), nil
	case bool:
		return BooleanField(v), nil
	case int:
		return IntegerField(int64(v)), nil
	case int8:
		return IntegerField(int64(v)), nil
	case int16:
		return IntegerField(int64(v)), nil
	case int32:
		return IntegerField(int64(v)), nil
	case int64:
		return IntegerField(v), nil
	case uint8:
		return IntegerField(int64(v)), nil
	case uint16:
		return IntegerField(int64(v)), nil
	case uint32:
		return IntegerField(int64(v)), nil
	case uint:
		return unsignedField(uint64(v))
	case uint64:
		return unsignedField(v)
	case uintptr:
		return unsignedField(uint64(v))
	case float32:
		return IntegerField(int64(v)), nil
	case float64:
		return IntegerField(int64(v)), nil
	case []string:
		elems := make([]any, len(v))
		for i := range v {
			elems[i] = v[i]
		}
		return ArrayField(elems...)
	case []any:
		return ArrayField(v...)
	}

	if rv := reflect.ValueOf(raw); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return ArrayField(elems...)
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return Value{}, err
	}
	return StringField(string(b)), nil
}

func unsignedField(n uint64) (Value, error) {
	if n > math.MaxInt64 {
		return Value{}, fmt.Errorf("integer %d overflows int64", n)
	}
	return IntegerField(int64(n)), nil
}

// Decode reverses Encode. String fields that look like JSON text are parsed,
// falling back to the raw string; array elements are parsed the same way.
func Decode(fields Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for key, v := range fields {
		switch v.kind {
		case KindString:
			out[key] = decodeString(v.str)
		case KindInteger:
			out[key] = v.num
		case KindBoolean:
			out[key] = v.flag
		case KindArray:
			elems := make([]any, len(v.items))
			for i, item := range v.items {
				elems[i] = parseJSONOrRaw(item)
			}
			out[key] = elems
		}
	}
	return out
}

func decodeString(s string) any {
	if s == "" {
		return s
	}
	switch s[0] {
	case '{', '[', '"':
		return parseJSONOrRaw(s)
	}
	return s
}

func parseJSONOrRaw(s string) any {
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return parsed
}

type wireArray struct {
	Values []wireValue `json:"values,omitempty"`
}

type wireValue struct {
	StringValue  *string         `json:"stringValue,omitempty"`
	IntegerValue json.RawMessage `json:"integerValue,omitempty"`
	BooleanValue *bool           `json:"booleanValue,omitempty"`
	ArrayValue   *wireArray      `json:"arrayValue,omitempty"`
}

// MarshalJSON writes the Firestore REST representation.
func (v Value) MarshalJSON() ([]byte, error) {
	var w wireValue
	switch v.kind {
	case KindString:
		w.StringValue = &v.str
	case KindInteger:
		w.IntegerValue = json.RawMessage(strconv.Quote(strconv.FormatInt(v.num, 10)))
	case KindBoolean:
		w.BooleanValue = &v.flag
	case KindArray:
		arr := &wireArray{}
		for i := range v.items {
			arr.Values = append(arr.Values, wireValue{StringValue: &v.items[i]})
		}
		w.ArrayValue = arr
	default:
		return nil, fmt.Errorf("docstore: cannot marshal %s value", v.kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the Firestore REST representation. Value kinds outside
// the supported set decode to an invalid Value and are ignored by Decode.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Value{}
	switch {
	case w.StringValue != nil:
		*v = StringField(*w.StringValue)
	case len(w.IntegerValue) > 0:
		n, err := parseInteger(w.IntegerValue)
		if err != nil {
			return err
		}
		*v = IntegerField(n)
	case w.BooleanValue != nil:
		*v = BooleanField(*w.BooleanValue)
	case w.ArrayValue != nil:
		items := make([]string, 0, len(w.ArrayValue.Values))
		for _, e := range w.ArrayValue.Values {
			if e.StringValue != nil {
				items = append(items, *e.StringValue)
			}
		}
		*v = Value{kind: KindArray, items: items}
	}
	return nil
}

// parseInteger accepts both the quoted form Firestore emits and a bare number.
func parseInteger(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("docstore: integerValue %s: %w", raw, err)
	}
	return n, nil
}
