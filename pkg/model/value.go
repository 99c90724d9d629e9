package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the JSON kind held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

var errInvalidValue = errors.New("model: cannot encode a Value without a kind")

// Value is an undeclared JSON property value. Only the kinds above can be
// represented; the zero Value has no kind and cannot be encoded.
//
// Numbers keep their literal text so that a decoded document re-encodes
// without loss of precision.
type Value struct {
	kind Kind
	text string // string contents or number literal
	b    bool
	list []Value
	obj  map[string]Value
}

// StringValue returns a string Value.
func StringValue(s string) Value {
	return Value{kind: KindString, text: s}
}

// CharValue returns a single character encoded as a JSON string.
func CharValue(r rune) Value {
	return StringValue(string(r))
}

// NumberValue returns a number Value holding the literal n.
func NumberValue(n json.Number) Value {
	return Value{kind: KindNumber, text: n.String()}
}

func IntValue(i int64) Value {
	return Value{kind: KindNumber, text: strconv.FormatInt(i, 10)}
}

func FloatValue(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// NullValue returns the JSON null. It is equal only to another null.
func NullValue() Value {
	return Value{kind: KindNull}
}

// ListValue returns an ordered list of values.
func ListValue(items ...Value) Value {
	list := make([]Value, len(items))
	copy(list, items)
	return Value{kind: KindList, list: list}
}

// ObjectValue returns a nested object. The map is copied.
func ObjectValue(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{kind: KindObject, obj: obj}
}

func (v Value) Kind() Kind { return v.kind }

// Str returns the string contents, or "" when v is not a string.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.text
}

// Num returns the number literal, or "" when v is not a number.
func (v Value) Num() json.Number {
	if v.kind != KindNumber {
		return ""
	}
	return json.Number(v.text)
}

func (v Value) Bool() bool {
	return v.kind == KindBool && v.b
}

// List returns a copy of the list elements, or nil when v is not a list.
func (v Value) List() []Value {
	if v.kind != KindList {
		return nil
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out
}

// Object returns a copy of the nested fields, or nil when v is not an object.
func (v Value) Object() map[string]Value {
	if v.kind != KindObject {
		return nil
	}
	out := make(map[string]Value, len(v.obj))
	for k, e := range v.obj {
		out[k] = e
	}
	return out
}

// Interface converts v into the generic form produced by encoding/json with UseNumber.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.text
	case KindNumber:
		return json.Number(v.text)
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports structural equality. Numbers compare by literal text.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString, KindNumber:
		return v.text == o.text
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return valueMapsEqual(v.obj, o.obj)
	default:
		return true
	}
}

func valueMapsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes v according to its kind. Object keys are written sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(json.Number(v.text))
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	case KindNull:
		return []byte("null"), nil
	default:
		return nil, errInvalidValue
	}
}

// UnmarshalJSON decodes any JSON value, null included.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := decodeValue("Value", "", data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// String renders v for diagnostics: strings bare, lists as [a, b], objects as {k=v}.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		return renderValueMap(v.obj)
	case KindNull:
		return "null"
	default:
		return "<invalid>"
	}
}

func renderValueMap(m map[string]Value) string {
	keys := sortedKeys(m)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeValue decodes raw into a Value. typ and field only label errors.
func decodeValue(typ, field string, raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return Value{}, fmt.Errorf("decode %s field %q: %w", typ, field, err)
	}
	return valueFromInterface(typ, field, generic)
}

func valueFromInterface(typ, path string, in any) (Value, error) {
	switch t := in.(type) {
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case bool:
		return BoolValue(t), nil
	case nil:
		return NullValue(), nil
	case []any:
		list := make([]Value, len(t))
		for i, e := range t {
			v, err := valueFromInterface(typ, fmt.Sprintf("%s[%d]", path, i), e)
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return Value{kind: KindList, list: list}, nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for _, k := range sortedKeys(t) {
			child := k
			if path != "" {
				child = path + "." + k
			}
			v, err := valueFromInterface(typ, child, t[k])
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	default:
		raw, _ := json.Marshal(t)
		return Value{}, unknownKindError(typ, path, raw)
	}
}
