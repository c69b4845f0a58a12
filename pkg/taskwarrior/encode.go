package taskwarrior

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
)

// Encode renders t as a wire object: required fields, then populated known
// fields, then UDAs as top level keys in insertion order.
func Encode(t *Task) ([]byte, error) {
	out := []byte("{}")
	var err error
	for _, f := range fields {
		if f.encode == nil {
			continue
		}
		v, ok := f.encode(t)
		if !ok {
			continue
		}
		if out, err = sjson.SetBytes(out, f.key, v); err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.key, err)
		}
	}
	t.UDAs(func(key, value string) bool {
		if isKnownKey(key) {
			return true
		}
		out, err = appendMember(out, key, value)
		if err != nil {
			err = fmt.Errorf("encode uda %q: %w", key, err)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler.
func (t *Task) MarshalJSON() ([]byte, error) {
	return Encode(t)
}

// appendMember adds "key":"value" before the closing brace of obj. UDA keys
// are arbitrary text, so they are quoted directly rather than passed through
// sjson's path syntax, which cannot name keys such as "" or "@this".
func appendMember(obj []byte, key, value string) ([]byte, error) {
	k, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	end := len(obj) - 1
	for end >= 0 && obj[end] != '}' {
		end--
	}
	if end < 0 {
		return nil, fmt.Errorf("not an object: %s", obj)
	}
	tail := append([]byte(nil), obj[end:]...)
	obj = obj[:end]
	if len(bytes.TrimRight(obj, " \t\r\n")) > 1 {
		obj = append(obj, ',')
	}
	obj = append(obj, k...)
	obj = append(obj, ':')
	obj = append(obj, v...)
	return append(obj, tail...), nil
}
