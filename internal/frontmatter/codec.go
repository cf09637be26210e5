package frontmatter

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Delimiter opens and closes a frontmatter block.
const Delimiter = "---"

// Field is one key/value entry.
type Field struct {
	Key   string
	Value Value
}

// Fields is an ordered mapping. Keys are unique; order is insertion order.
type Fields []Field

// Get returns the value stored under key.
func (f Fields) Get(key string) (Value, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return Value{}, false
}

// String returns the string stored under key, or "" if the key is missing
// or holds another kind.
func (f Fields) String(key string) string {
	v, _ := f.Get(key)
	s, _ := v.Str()
	return s
}

// Has reports whether key is present.
func (f Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Set replaces the value under key in place, or appends a new entry.
func (f *Fields) Set(key string, v Value) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = v
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: v})
}

// Delete removes key if present.
func (f *Fields) Delete(key string) {
	for i := range *f {
		if (*f)[i].Key == key {
			*f = append((*f)[:i], (*f)[i+1:]...)
			return
		}
	}
}

// Keys returns the keys in order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}

// Equal reports whether f and o hold the same entries in the same order.
func (f Fields) Equal(o Fields) bool {
	if len(f) != len(o) {
		return false
	}
	for i := range f {
		if f[i].Key != o[i].Key || !f[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// Encode renders fields as a delimited block ending in a newline.
// Output is deterministic for equal input.
func Encode(fields Fields) string {
	var b strings.Builder
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	for _, field := range fields {
		b.WriteString(field.Key)
		b.WriteString(": ")
		b.WriteString(encodeValue(field.Value))
		b.WriteByte('\n')
	}
	b.WriteString(Delimiter)
	b.WriteByte('\n')
	return b.String()
}

// encodeValue matches JSON.stringify output: no HTML escaping, no trailing newline.
func encodeValue(v Value) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v.native()); err != nil {
		return "null"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Decode parses `key: value` lines. Delimiter lines are ignored, lines without
// a key are skipped, and values that are not JSON are kept as raw strings.
// Empty input yields empty Fields.
func Decode(text string) Fields {
	fields := Fields{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == Delimiter {
			continue
		}
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		if key == "" {
			continue
		}
		fields.Set(key, decodeValue(strings.TrimSpace(line[idx+1:])))
	}
	return fields
}

func decodeValue(raw string) Value {
	var x any
	if err := json.Unmarshal([]byte(raw), &x); err != nil {
		return StringValue(raw)
	}
	v, ok := fromNative(x)
	if !ok {
		return StringValue(raw)
	}
	return v
}

// Split separates a leading frontmatter block from the rest of content.
// block excludes the delimiter lines. ok is false when content does not open
// with a delimiter line or the block is never closed; body is then content.
func Split(content string) (block, body string, ok bool) {
	first, rest, found := strings.Cut(content, "\n")
	if !found || strings.TrimRight(first, "\r") != Delimiter {
		return "", content, false
	}
	pos := 0
	for pos <= len(rest) {
		end := strings.IndexByte(rest[pos:], '\n')
		var line string
		next := len(rest) + 1
		if end < 0 {
			line = rest[pos:]
		} else {
			line = rest[pos : pos+end]
			next = pos + end + 1
		}
		if strings.TrimRight(line, "\r") == Delimiter {
			block = rest[:pos]
			if next > len(rest) {
				return block, "", true
			}
			return block, rest[next:], true
		}
		if end < 0 {
			break
		}
		pos = next
	}
	return "", content, false
}
