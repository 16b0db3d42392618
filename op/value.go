package op

import "fmt"

// Kind tags the dynamic value domain the engine operates over: a small
// closed sum type, represented the way the tur database's pkg/types.Value
// represents its own tagged Mem-like value (a Kind discriminant plus one
// field per variant; the string variant is an immutable Go string, so reads
// need no copy).
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindCounter
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindCounter:
		return "counter"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Value is a primitive value carried by an operation or stored at a list
// element. Composite values (maps, lists, tables, text) are never held
// here; they are represented as objects in the OpSet, referenced by OpId.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Counter(i int64) Value       { return Value{kind: KindCounter, i: i} }
func Timestamp(ms int64) Value    { return Value{kind: KindTimestamp, i: ms} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Bool() bool     { return v.b }
func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) String() string { return v.s }

// IsNumericDatatype reports whether this value carries one of the two
// "datatype" tags the spec calls out (counter, timestamp) as opposed to a
// plain primitive.
func (v Value) IsNumericDatatype() bool {
	return v.kind == KindCounter || v.kind == KindTimestamp
}

// Add returns a new counter value with delta applied. Panics if v is not a
// counter; callers must check Kind first.
func (v Value) Add(delta int64) Value {
	if v.kind != KindCounter {
		panic(fmt.Sprintf("op: Add called on non-counter value (kind=%s)", v.kind))
	}
	return Counter(v.i + delta)
}

func (v Value) GoString() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%v", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindCounter:
		return fmt.Sprintf("counter(%d)", v.i)
	case KindTimestamp:
		return fmt.Sprintf("timestamp(%d)", v.i)
	default:
		return "?"
	}
}

// Equal reports deep value equality, used by tests.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt, KindCounter, KindTimestamp:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	}
	return false
}
