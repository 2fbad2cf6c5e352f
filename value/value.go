// Package value defines Value, the tagged variant stored in each
// NetworkTables entry, and the type-bitmask constants used to filter
// entries by type.
package value

import "fmt"

// Type identifies which variant a Value holds. Types double as a bitmask so
// that GetEntries/GetEntryInfo can filter on a set of types in one pass.
type Type uint32

const (
	Unassigned Type = 0
	Boolean    Type = 1 << iota
	Double
	String
	Raw
	BooleanArray
	DoubleArray
	StringArray
	RPC
)

func (t Type) String() string {
	switch t {
	case Unassigned:
		return "unassigned"
	case Boolean:
		return "boolean"
	case Double:
		return "double"
	case String:
		return "string"
	case Raw:
		return "raw"
	case BooleanArray:
		return "boolean[]"
	case DoubleArray:
		return "double[]"
	case StringArray:
		return "string[]"
	case RPC:
		return "rpc"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// Value is an immutable tagged union carrying one of the NetworkTables wire
// types plus the 64-bit monotonic timestamp it was last changed at. The zero
// Value is invalid; use one of the constructors below.
type Value struct {
	typ          Type
	boolean      bool
	double       float64
	str          string
	raw          []byte
	booleanArray []bool
	doubleArray  []float64
	stringArray  []string
	// time is a monotonically increasing timestamp in microseconds, matching
	// the "last_change" field used throughout ntcore.
	time uint64
}

// Type returns the value's type tag.
func (v *Value) Type() Type {
	if v == nil {
		return Unassigned
	}
	return v.typ
}

// Time returns the value's last-change timestamp.
func (v *Value) Time() uint64 {
	if v == nil {
		return 0
	}
	return v.time
}

// IsRPC reports whether this value holds an RPC definition blob.
func (v *Value) IsRPC() bool {
	return v.Type() == RPC
}

// WithTime returns a copy of v stamped with t, leaving v itself untouched.
// Used by the storage layer to auto-stamp locally written values that
// arrive with no timestamp of their own.
func WithTime(v *Value, t uint64) *Value {
	cp := *v
	cp.time = t
	return &cp
}

func NewBoolean(b bool, t uint64) *Value    { return &Value{typ: Boolean, boolean: b, time: t} }
func NewDouble(d float64, t uint64) *Value  { return &Value{typ: Double, double: d, time: t} }
func NewString(s string, t uint64) *Value   { return &Value{typ: String, str: s, time: t} }
func NewRPCDef(def []byte, t uint64) *Value { return &Value{typ: RPC, raw: cloneBytes(def), time: t} }

// NewRaw copies b so the caller may reuse its buffer.
func NewRaw(b []byte, t uint64) *Value {
	return &Value{typ: Raw, raw: cloneBytes(b), time: t}
}

// NewBooleanArray copies a so the caller may reuse its slice.
func NewBooleanArray(a []bool, t uint64) *Value {
	return &Value{typ: BooleanArray, booleanArray: append([]bool(nil), a...), time: t}
}

// NewDoubleArray copies a so the caller may reuse its slice.
func NewDoubleArray(a []float64, t uint64) *Value {
	return &Value{typ: DoubleArray, doubleArray: append([]float64(nil), a...), time: t}
}

// NewStringArray copies a so the caller may reuse its slice.
func NewStringArray(a []string, t uint64) *Value {
	return &Value{typ: StringArray, stringArray: append([]string(nil), a...), time: t}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// GetBoolean panics if Type() != Boolean; callers are expected to check the
// type first, matching ntcore's Value::GetBoolean() contract.
func (v *Value) GetBoolean() bool          { v.mustBe(Boolean); return v.boolean }
func (v *Value) GetDouble() float64        { v.mustBe(Double); return v.double }
func (v *Value) GetString() string         { v.mustBe(String); return v.str }
func (v *Value) GetRaw() []byte            { v.mustBe(Raw); return v.raw }
func (v *Value) GetRPC() []byte            { v.mustBe(RPC); return v.raw }
func (v *Value) GetBooleanArray() []bool   { v.mustBe(BooleanArray); return v.booleanArray }
func (v *Value) GetDoubleArray() []float64 { v.mustBe(DoubleArray); return v.doubleArray }
func (v *Value) GetStringArray() []string  { v.mustBe(StringArray); return v.stringArray }

func (v *Value) mustBe(t Type) {
	if v == nil || v.typ != t {
		panic(fmt.Sprintf("value: wrong type accessor, have %v want %v", v.Type(), t))
	}
}

// Equal reports whether two values hold the same type and content, ignoring
// their timestamps (mirroring ntcore's Value::operator== which compares data
// only).
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Boolean:
		return a.boolean == b.boolean
	case Double:
		return a.double == b.double
	case String:
		return a.str == b.str
	case Raw, RPC:
		return string(a.raw) == string(b.raw)
	case BooleanArray:
		return boolSliceEqual(a.booleanArray, b.booleanArray)
	case DoubleArray:
		return doubleSliceEqual(a.doubleArray, b.doubleArray)
	case StringArray:
		return stringSliceEqual(a.stringArray, b.stringArray)
	default:
		return true
	}
}

func boolSliceEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func doubleSliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
