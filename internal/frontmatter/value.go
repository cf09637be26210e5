// Package frontmatter encodes and decodes the key/value header at the top of a task file.
//
// The wire format is one `key: <json>` line per entry between two `---` lines.
// Values that are not valid JSON decode to their raw text.
package frontmatter

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind identifies the type held by a Value.
type Kind int

const (
	Null Kind = iota
	String
	Number
	Bool
	List
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case List:
		return "list"
	default:
		return "null"
	}
}

// Value is a single frontmatter value.
// The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
}

// StringValue returns a String value.
func StringValue(s string) Value { return Value{kind: String, str: s} }

// NumberValue returns a Number value.
func NumberValue(n float64) Value { return Value{kind: Number, num: n} }

// BoolValue returns a Bool value.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// ListValue returns a List value holding items.
func ListValue(items ...Value) Value {
	list := make([]Value, len(items))
	copy(list, items)
	return Value{kind: List, list: list}
}

// StringList is shorthand for a List of String values.
func StringList(items []string) Value {
	list := make([]Value, len(items))
	for i, s := range items {
		list[i] = StringValue(s)
	}
	return Value{kind: List, list: list}
}

// Kind reports the type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == Null }

// Str returns the string held by v, if v is a String.
func (v Value) Str() (string, bool) { return v.str, v.kind == String }

// Num returns the number held by v, if v is a Number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == Number }

// Bool returns the boolean held by v, if v is a Bool.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == Bool }

// List returns the items held by v, if v is a List.
func (v Value) List() ([]Value, bool) {
	if v.kind != List {
		return nil, false
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, true
}

// Text renders v for display and template substitution.
// Lists are joined with ", " and Null renders as "".
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.str
	case Number:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case Bool:
		return strconv.FormatBool(v.b)
	case List:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Text()
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// Equal reports whether v and o hold the same kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case String:
		return v.str == o.str
	case Number:
		return v.num == o.num
	case Bool:
		return v.b == o.b
	case List:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

func (v Value) native() any {
	switch v.kind {
	case String:
		return v.str
	case Number:
		return v.num
	case Bool:
		return v.b
	case List:
		items := make([]any, len(v.list))
		for i, item := range v.list {
			items[i] = item.native()
		}
		return items
	default:
		return nil
	}
}

// fromNative converts a decoded JSON value. Objects are not representable.
func fromNative(x any) (Value, bool) {
	switch t := x.(type) {
	case nil:
		return Value{}, true
	case string:
		return StringValue(t), true
	case float64:
		return NumberValue(t), true
	case bool:
		return BoolValue(t), true
	case []any:
		list := make([]Value, 0, len(t))
		for _, item := range t {
			v, ok := fromNative(item)
			if !ok {
				return Value{}, false
			}
			list = append(list, v)
		}
		return Value{kind: List, list: list}, true
	default:
		return Value{}, false
	}
}
