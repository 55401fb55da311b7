package weave

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies the variant held by a V.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBoolean
	KindNumber
	KindString
	KindEnum
	KindObject
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// V is a JSON-like algebraic value: null, boolean, number, string, enum
// token, ordered object, or list. It is the currency the executor passes
// between the merge engine, the path engine and the coordinator.
type V struct {
	kind   ValueKind
	bval   bool
	number json.Number
	str    string
	obj    *Object
	list   []V
}

// Null returns the null value.
func Null() V { return V{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) V { return V{kind: KindBoolean, bval: b} }

// Int wraps an integer number.
func Int(i int64) V { return V{kind: KindNumber, number: json.Number(strconv.FormatInt(i, 10))} }

// Float wraps a floating point number.
func Float(f float64) V {
	return V{kind: KindNumber, number: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// NumberFromString wraps a pre-formatted numeric literal, preserving whether
// it was written as an integer or a float.
func NumberFromString(n json.Number) V { return V{kind: KindNumber, number: n} }

// String wraps a string scalar.
func String(s string) V { return V{kind: KindString, str: s} }

// Enum wraps an enum token.
func Enum(tok string) V { return V{kind: KindEnum, str: tok} }

// List wraps an ordered list of values.
func List(items ...V) V {
	if items == nil {
		items = []V{}
	}
	return V{kind: KindList, list: items}
}

// ObjectValue wraps an ordered object.
func ObjectValue(o *Object) V {
	if o == nil {
		o = NewObject()
	}
	return V{kind: KindObject, obj: o}
}

// Kind returns the variant held by v.
func (v V) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the null value.
func (v V) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean value and whether v held one.
func (v V) AsBool() (bool, bool) { return v.bval, v.kind == KindBoolean }

// AsNumber returns the underlying numeric literal and whether v held one.
func (v V) AsNumber() (json.Number, bool) { return v.number, v.kind == KindNumber }

// AsInt returns v as an int64 if it is an integral number.
func (v V) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	i, err := v.number.Int64()
	return i, err == nil
}

// AsFloat returns v as a float64 if it is a number.
func (v V) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.number.Float64()
	return f, err == nil
}

// AsString returns the string payload of a String or Enum value.
func (v V) AsString() (string, bool) {
	if v.kind != KindString && v.kind != KindEnum {
		return "", false
	}
	return v.str, true
}

// AsObject returns the underlying ordered object and whether v held one.
func (v V) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// AsList returns the underlying list and whether v held one.
func (v V) AsList() ([]V, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Clone returns a deep copy of v. Objects and lists are copied so that
// mutating the clone never affects the original (used when an upstream
// result must be grafted into the response tree without aliasing it).
func (v V) Clone() V {
	switch v.kind {
	case KindObject:
		return ObjectValue(v.obj.Clone())
	case KindList:
		out := make([]V, len(v.list))
		for i, item := range v.list {
			out[i] = item.Clone()
		}
		return List(out...)
	default:
		return v
	}
}

// Equal reports whether a and b are structurally equal. Object equality
// compares key sets and per-key values, ignoring insertion order.
func Equal(a, b V) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBoolean:
		return a.bval == b.bval
	case KindNumber:
		af, aok := a.AsFloat()
		bf, bok := b.AsFloat()
		return aok && bok && af == bf
	case KindString, KindEnum:
		return a.str == b.str
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.Keys() {
			av, _ := a.obj.Get(k)
			bv, ok := b.obj.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON renders v using standard JSON, preserving object key order.
func (v V) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBoolean:
		if v.bval {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindNumber:
		if v.number == "" {
			return []byte("0"), nil
		}
		return []byte(v.number.String()), nil
	case KindString, KindEnum:
		return json.Marshal(v.str)
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, key := range v.obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			val, _ := v.obj.Get(key)
			vb, err := val.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("weave: cannot marshal value of kind %v", v.kind)
	}
}

// UnmarshalJSON decodes standard JSON into v, preserving object key order and
// the integer/float distinction of each number literal. There is no
// order-preserving JSON library in play here, so decoding walks the token
// stream by hand instead of going through map[string]interface{}.
func (v *V) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func decodeValue(dec *json.Decoder) (V, error) {
	tok, err := dec.Token()
	if err != nil {
		return V{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (V, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return V{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return V{}, fmt.Errorf("weave: expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return V{}, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return V{}, err
			}
			return ObjectValue(obj), nil
		case '[':
			var items []V
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return V{}, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return V{}, err
			}
			return List(items...), nil
		default:
			return V{}, fmt.Errorf("weave: unexpected delimiter %v", t)
		}
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return NumberFromString(t), nil
	case string:
		return String(t), nil
	default:
		return V{}, fmt.Errorf("weave: unhandled JSON token %T", tok)
	}
}

// ParseValue decodes a standalone JSON document into a V.
func ParseValue(data []byte) (V, error) {
	var v V
	if err := v.UnmarshalJSON(data); err != nil {
		return V{}, err
	}
	return v, nil
}
