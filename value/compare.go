package value

import (
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// Ordering is the result of a three-way comparison, with Unordered standing
// in for NaN's IEEE-754 unordered relation (§4.6.3: "NaN compares unordered
// (false for relational, equal only to itself)").
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
	Unordered
)

// Compare implements §4.6.3's numeric promotion: integers and floats promote
// per IEEE-754. Decimal128 operands are converted to float64 too, so a mixed
// integer/decimal comparison is a float64 comparison and is not exact beyond
// float64 precision. §9 calls for an
// explicit coercion table rather than relying on Go's own numeric promotion,
// which (unlike C++) does none at all for typed values — this function is
// that table.
func Compare(a, b Value) Ordering {
	a, b = a.Unwrap(), b.Unwrap()

	if isNumeric(a.Kind) && isNumeric(b.Kind) {
		return compareNumeric(a, b)
	}
	if a.Kind == String && b.Kind == String {
		return compareOrdered(compareStrings(a.S, b.S))
	}
	if a.Kind == Timestamp && b.Kind == Timestamp {
		return compareOrdered(a.T.Compare(b.T))
	}
	if a.Kind == Bool && b.Kind == Bool {
		return compareOrdered(boolCompare(a.B, b.B))
	}
	if a.Kind == Binary && b.Kind == Binary {
		return compareOrdered(compareBytes(a.Bin, b.Bin))
	}
	if a.Kind == Null && b.Kind == Null {
		return Equal
	}
	if a.Kind != b.Kind {
		return Unordered
	}
	return Unordered
}

func compareOrdered(i int) Ordering {
	switch {
	case i < 0:
		return Less
	case i > 0:
		return Greater
	default:
		return Equal
	}
}

func isNumeric(k Kind) bool {
	switch k {
	case Int, Float, Double, Decimal128:
		return true
	default:
		return false
	}
}

func asFloat64(v Value) (float64, bool) {
	switch v.Kind {
	case Int:
		return float64(v.I), true
	case Float:
		return float64(v.F32), true
	case Double:
		return v.F64, true
	case Decimal128:
		return decimalToFloat64(&v.Dec), true
	default:
		return 0, false
	}
}

// compareNumeric promotes both sides to float64, Decimal128 included (its
// payload is converted through big.Float by decimalToFloat64); there is no
// exact decimal comparison path.
func compareNumeric(a, b Value) Ordering {
	af, _ := asFloat64(a)
	bf, _ := asFloat64(b)
	if math.IsNaN(af) || math.IsNaN(bf) {
		if math.IsNaN(af) && math.IsNaN(bf) {
			return Equal
		}
		return Unordered
	}
	switch {
	case af < bf:
		return Less
	case af > bf:
		return Greater
	default:
		return Equal
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

// decimalToFloat64 turns the low 128 bits of a uint256 Decimal128 payload
// into a float64 well enough for ordering comparisons (full decimal
// arithmetic is out of scope; only relative order and equality matter to
// query evaluation).
func decimalToFloat64(v *uint256.Int) float64 {
	f := new(big.Float).SetInt(v.ToBig())
	r, _ := f.Float64()
	return r
}
