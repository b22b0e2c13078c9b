package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// ============================================================================
//                              Value - 载荷值
// ============================================================================

// ValueKind 载荷值类型
//
// 封闭集合：字符串、数值、嵌套映射。
type ValueKind int

const (
	// ValueInvalid 无效值（零值）
	ValueInvalid ValueKind = iota
	// ValueString 字符串
	ValueString
	// ValueNumber 数值（统一为 float64）
	ValueNumber
	// ValueMap 嵌套映射
	ValueMap
)

// String 返回类型名称
func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value 载荷中的单个值
type Value struct {
	kind ValueKind
	str  string
	num  float64
	m    Payload
}

// StringValue 构造字符串值
func StringValue(s string) Value { return Value{kind: ValueString, str: s} }

// NumberValue 构造数值
func NumberValue(n float64) Value { return Value{kind: ValueNumber, num: n} }

// MapValue 构造嵌套映射值
func MapValue(p Payload) Value { return Value{kind: ValueMap, m: p.Clone()} }

// Kind 返回值类型
func (v Value) Kind() ValueKind { return v.kind }

// Str 返回字符串值
func (v Value) Str() (string, bool) { return v.str, v.kind == ValueString }

// Num 返回数值
func (v Value) Num() (float64, bool) { return v.num, v.kind == ValueNumber }

// Map 返回嵌套映射
func (v Value) Map() (Payload, bool) { return v.m, v.kind == ValueMap }

// Raw 转换为 string / float64 / map[string]any
func (v Value) Raw() any {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return v.num
	case ValueMap:
		return v.m.Raw()
	default:
		return nil
	}
}

func (v Value) equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.str == o.str
	case ValueNumber:
		return v.num == o.num
	case ValueMap:
		return v.m.Equal(o.m)
	default:
		return true
	}
}

// ============================================================================
//                              Payload - 键值载荷
// ============================================================================

// Payload 字符串键的类型化键值映射
type Payload map[string]Value

// PayloadFromRaw 从松散类型映射构造载荷
//
// 仅接受 string、数值（所有 int/uint/float 及 json.Number）和嵌套 map[string]any，
// 其他类型（bool、切片、nil 等）返回 ErrInvalidArgument。
func PayloadFromRaw(raw map[string]any) (Payload, error) {
	return payloadFromRaw(raw, "")
}

func payloadFromRaw(raw map[string]any, path string) (Payload, error) {
	out := make(Payload, len(raw))
	for k, rv := range raw {
		key := k
		if path != "" {
			key = path + "." + k
		}
		v, err := valueFromRaw(rv, key)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func valueFromRaw(rv any, key string) (Value, error) {
	switch x := rv.(type) {
	case string:
		return StringValue(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, ErrInvalidArgument.WithOp("payload", fmt.Errorf("key %q: %w", key, err))
		}
		return NumberValue(f), nil
	case map[string]any:
		p, err := payloadFromRaw(x, key)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: ValueMap, m: p}, nil
	case Payload:
		return MapValue(x), nil
	case Value:
		if x.kind == ValueInvalid {
			return Value{}, ErrInvalidArgument.WithOp("payload", fmt.Errorf("key %q: invalid value", key))
		}
		return x, nil
	}

	if rv != nil {
		r := reflect.ValueOf(rv)
		switch r.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return NumberValue(float64(r.Int())), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return NumberValue(float64(r.Uint())), nil
		case reflect.Float32, reflect.Float64:
			return NumberValue(r.Float()), nil
		}
	}
	return Value{}, ErrInvalidArgument.WithOp("payload", fmt.Errorf("key %q: unsupported value type %T", key, rv))
}

// Raw 转换为松散类型映射
func (p Payload) Raw() map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Raw()
	}
	return out
}

// Clone 深拷贝
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		if v.kind == ValueMap {
			v.m = v.m.Clone()
		}
		out[k] = v
	}
	return out
}

// Equal 深比较
func (p Payload) Equal(o Payload) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.equal(ov) {
			return false
		}
	}
	return true
}

// Keys 返回排序后的键
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON 实现 json.Marshaler
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Raw())
}

// UnmarshalJSON 实现 json.Unmarshaler
//
// 数值按 json.Number 解码后统一转换，bool/数组/null 会被拒绝。
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := PayloadFromRaw(raw)
	if err != nil {
		return err
	}
	*p = out
	return nil
}
