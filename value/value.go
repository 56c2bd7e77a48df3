// Package value implements the §3.1 value-kind tagged union: the set of
// scalar kinds an object's property may hold, plus the heterogeneous Mixed
// variant. Grounded on the "inheritance -> tagged union" guidance of §9; the
// 128-bit kinds (Decimal128, UUID) are backed by
// github.com/holiman/uint256.Int, the same library the teacher's go.mod
// carries for 256-bit arithmetic elsewhere (account balances, difficulty) —
// its low two 64-bit words are enough to hold a 128-bit payload.
package value

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// Kind discriminates the Value union.
type Kind int

const (
	Int Kind = iota
	Float
	Double
	Bool
	Timestamp
	Decimal128
	UUID
	ObjectId
	String
	Binary
	Link
	Mixed
	Null
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case Timestamp:
		return "timestamp"
	case Decimal128:
		return "decimal128"
	case UUID:
		return "uuid"
	case ObjectId:
		return "objectid"
	case String:
		return "string"
	case Binary:
		return "binary"
	case Link:
		return "link"
	case Mixed:
		return "mixed"
	case Null:
		return "null"
	default:
		return "unknown"
	}
}

// Ts is a UTC timestamp: seconds + nanoseconds, per §3.1.
type Ts struct {
	Seconds     int64
	Nanoseconds int32
}

// ToTime converts to a standard library time.Time in UTC.
func (t Ts) ToTime() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanoseconds)).UTC()
}

// Compare orders two timestamps.
func (t Ts) Compare(o Ts) int {
	if t.Seconds != o.Seconds {
		if t.Seconds < o.Seconds {
			return -1
		}
		return 1
	}
	if t.Nanoseconds != o.Nanoseconds {
		if t.Nanoseconds < o.Nanoseconds {
			return -1
		}
		return 1
	}
	return 0
}

// ObjID is the 96-bit MongoDB-style ObjectId value kind (distinct from the
// 128-bit synchronization ObjectID in package objectid).
type ObjID [12]byte

// LinkValue addresses a row in another table: the target table's name plus
// the row's local key (an objectid.Key, but kept as int64 here to avoid an
// import cycle — objectid.Key is defined as int64 for exactly this reason).
type LinkValue struct {
	TargetTable string
	Key         int64
}

// Value is the tagged-union scalar value. Only the field matching Kind is
// meaningful, mirroring the single-allocation sum-type approach used for the
// parser AST (§9).
type Value struct {
	Kind Kind

	I   int64
	F32 float32
	F64 float64
	B   bool
	T   Ts
	Dec uint256.Int // low 128 bits significant
	U   uint256.Int // low 128 bits significant (UUID)
	Oid ObjID
	S   string
	Bin []byte
	Lnk LinkValue

	// Mixed holds the actual typed value when Kind == Mixed, enabling
	// nesting up to path.MaxNest (enforced by callers, not by Value itself).
	MixedValue *Value
}

func IntVal(v int64) Value      { return Value{Kind: Int, I: v} }
func FloatVal(v float32) Value  { return Value{Kind: Float, F32: v} }
func DoubleVal(v float64) Value { return Value{Kind: Double, F64: v} }
func BoolVal(v bool) Value      { return Value{Kind: Bool, B: v} }
func StringVal(v string) Value  { return Value{Kind: String, S: v} }
func BinaryVal(v []byte) Value  { return Value{Kind: Binary, Bin: v} }
func TimestampVal(v Ts) Value   { return Value{Kind: Timestamp, T: v} }
func LinkVal(v LinkValue) Value { return Value{Kind: Link, Lnk: v} }
func NullVal() Value            { return Value{Kind: Null} }
func MixedVal(v Value) Value    { inner := v; return Value{Kind: Mixed, MixedValue: &inner} }

// IsNull reports whether the value is the null inhabitant (§3.1: "null is a
// distinct inhabitant, not a sentinel").
func (v Value) IsNull() bool { return v.Kind == Null }

// Unwrap follows Mixed indirection down to the first non-Mixed value.
func (v Value) Unwrap() Value {
	for v.Kind == Mixed && v.MixedValue != nil {
		v = *v.MixedValue
	}
	return v
}

func (v Value) String() string {
	u := v.Unwrap()
	switch u.Kind {
	case Int:
		return fmt.Sprintf("%d", u.I)
	case Float:
		return fmt.Sprintf("%g", u.F32)
	case Double:
		return fmt.Sprintf("%g", u.F64)
	case Bool:
		return fmt.Sprintf("%t", u.B)
	case String:
		return u.S
	case Null:
		return "null"
	default:
		return fmt.Sprintf("%s(%v)", u.Kind, u)
	}
}
