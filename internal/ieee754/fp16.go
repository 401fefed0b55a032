package ieee754

import (
	"fmt"
	"math"
)

// Fields16 is the decomposed form of an IEEE 754 half-precision value.
// Invariant: Sign <= 1, Exponent < 1<<5, Mantissa < 1<<10.
//
// Narrowing is one way: there is deliberately no Float32 on Fields16.
// Consumers that need to widen half-precision bits back into a value bring
// their own half-float library.
type Fields16 struct {
	Sign     uint16
	Exponent uint16
	Mantissa uint16
}

// Narrow16 converts a single-precision value to half-precision fields by
// rebiasing the exponent and truncating the mantissa. Dropped mantissa bits
// are cut, never rounded. Every NaN input narrows to the same positive
// payload {0, 31, 1}, sign included: reference behavior to keep bit for bit.
func Narrow16(f float32) Fields16 {
	if math.IsNaN(float64(f)) {
		return Fields16{Sign: 0, Exponent: maxExp16, Mantissa: 1}
	}
	if math.IsInf(float64(f), 0) {
		var sign uint16
		if f < 0 {
			sign = 1
		}
		return Fields16{Sign: sign, Exponent: maxExp16}
	}

	f32 := Decompose32(f)
	sign := uint16(f32.Sign)

	if f32.Exponent == 0 {
		// Zero stays signed zero. A single-precision subnormal sits far
		// below the smallest half-precision subnormal, so it flushes to
		// zero as well.
		return Fields16{Sign: sign}
	}

	exp16 := int32(f32.Exponent) - Bias32 + Bias16
	switch {
	case exp16 <= 0:
		// Underflows the normal range; shift the full 24-bit significand
		// (implicit leading 1 restored) down into the subnormal field.
		shift := uint32(1 - exp16)
		if shift >= MantWidth16 {
			return Fields16{Sign: sign}
		}
		full := uint32(1)<<MantWidth32 | f32.Mantissa
		mant := uint16(full>>(MantWidth32-MantWidth16+shift)) & mantMask16
		return Fields16{Sign: sign, Mantissa: mant}
	case exp16 >= maxExp16:
		return Fields16{Sign: sign, Exponent: maxExp16}
	default:
		mant := uint16(f32.Mantissa>>(MantWidth32-MantWidth16)) & mantMask16
		return Fields16{Sign: sign, Exponent: uint16(exp16), Mantissa: mant}
	}
}

// Unpack16 splits a raw half-precision bit pattern into fields.
func Unpack16(bits uint16) Fields16 {
	return Fields16{
		Sign:     bits >> 15 & 1,
		Exponent: bits >> MantWidth16 & maxExp16,
		Mantissa: bits & mantMask16,
	}
}

// Bits packs the fields back into the canonical bit pattern.
func (f Fields16) Bits() uint16 {
	return f.Sign<<15 | f.Exponent<<MantWidth16 | f.Mantissa
}

// Class returns the IEEE 754 category of the fields.
func (f Fields16) Class() Class {
	return Classify(uint32(f.Exponent), uint32(f.Mantissa), ExpWidth16)
}

// Binary renders the packed bit pattern MSB first, zero padded to 16 digits.
func (f Fields16) Binary() string {
	return fmt.Sprintf("%016b", f.Bits())
}

// Hex renders the packed bit pattern as 4 upper-case hex digits.
func (f Fields16) Hex() string {
	return fmt.Sprintf("0x%04X", f.Bits())
}
