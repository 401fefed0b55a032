// Package ieee754 decomposes, reassembles and narrows IEEE 754 binary
// floating-point values at the bit level. Every operation is a pure
// function over the raw bit pattern; nothing here allocates shared state
// or touches I/O.
package ieee754

// Field layout of the two supported formats.
const (
	ExpWidth32  = 8
	MantWidth32 = 23
	Bias32      = 127

	ExpWidth16  = 5
	MantWidth16 = 10
	Bias16      = 15
)

const (
	maxExp32   = 1<<ExpWidth32 - 1
	mantMask32 = 1<<MantWidth32 - 1

	maxExp16   = 1<<ExpWidth16 - 1
	mantMask16 = 1<<MantWidth16 - 1
)

// Class is the IEEE 754 category of a decomposed value. Exactly one class
// applies to any exponent/mantissa pair, so the five flags of the classic
// presentation collapse into a single tag.
type Class int

const (
	ClassZero Class = iota
	ClassSubnormal
	ClassNormal
	ClassInf
	ClassNaN
)

func (c Class) String() string {
	switch c {
	case ClassZero:
		return "zero"
	case ClassSubnormal:
		return "subnormal"
	case ClassNormal:
		return "normal"
	case ClassInf:
		return "infinite"
	case ClassNaN:
		return "nan"
	default:
		return "invalid"
	}
}

// Classify labels an exponent/mantissa pair for a format with the given
// exponent field width. The mapping is total: zero and subnormal share the
// all-zero exponent, infinity and NaN share the all-one exponent, and
// everything between is normal.
func Classify(exponent, mantissa uint32, expWidth uint) Class {
	maxExp := uint32(1)<<expWidth - 1
	switch {
	case exponent == 0 && mantissa == 0:
		return ClassZero
	case exponent == 0:
		return ClassSubnormal
	case exponent == maxExp && mantissa == 0:
		return ClassInf
	case exponent == maxExp:
		return ClassNaN
	default:
		return ClassNormal
	}
}
