package ieee754

import (
	"errors"
	"fmt"
	"math"
)

// ErrFieldRange reports a field handed to Compose32 that does not fit its
// declared bit width. It marks a caller contract violation, not a
// recoverable runtime condition.
var ErrFieldRange = errors.New("field exceeds declared bit width")

// Fields32 is the decomposed form of an IEEE 754 single-precision value.
// Invariant: Sign <= 1, Exponent < 1<<8, Mantissa < 1<<23. Bits assumes
// the invariant holds.
type Fields32 struct {
	Sign     uint32
	Exponent uint32
	Mantissa uint32
}

// Decompose32 splits f into its raw sign, exponent and mantissa fields.
// This is a bit-level reinterpretation, never an arithmetic operation: NaN
// payloads and the sign of zero survive unchanged.
func Decompose32(f float32) Fields32 {
	return Unpack32(math.Float32bits(f))
}

// Unpack32 splits a raw single-precision bit pattern into fields.
func Unpack32(bits uint32) Fields32 {
	return Fields32{
		Sign:     bits >> 31 & 1,
		Exponent: bits >> MantWidth32 & maxExp32,
		Mantissa: bits & mantMask32,
	}
}

// Bits packs the fields back into the canonical bit pattern.
func (f Fields32) Bits() uint32 {
	return f.Sign<<31 | f.Exponent<<MantWidth32 | f.Mantissa
}

// Float32 reinterprets the packed fields as a single-precision value.
func (f Fields32) Float32() float32 {
	return math.Float32frombits(f.Bits())
}

// Class returns the IEEE 754 category of the fields.
func (f Fields32) Class() Class {
	return Classify(f.Exponent, f.Mantissa, ExpWidth32)
}

// Binary renders the packed bit pattern MSB first, zero padded to 32 digits.
func (f Fields32) Binary() string {
	return fmt.Sprintf("%032b", f.Bits())
}

// Hex renders the packed bit pattern as 8 upper-case hex digits.
func (f Fields32) Hex() string {
	return fmt.Sprintf("0x%08X", f.Bits())
}

// Compose32 reassembles a single-precision value from raw fields. Exponent
// 255 yields a signed infinity when the mantissa is zero and otherwise a
// NaN carrying exactly the given payload bits. Fields outside their bit
// width fail with ErrFieldRange.
func Compose32(sign, exponent, mantissa uint32) (float32, error) {
	if sign > 1 {
		return 0, fmt.Errorf("sign %d: %w", sign, ErrFieldRange)
	}
	if exponent > maxExp32 {
		return 0, fmt.Errorf("exponent %d does not fit %d bits: %w", exponent, ExpWidth32, ErrFieldRange)
	}
	if mantissa > mantMask32 {
		return 0, fmt.Errorf("mantissa %#x does not fit %d bits: %w", mantissa, MantWidth32, ErrFieldRange)
	}
	return Fields32{Sign: sign, Exponent: exponent, Mantissa: mantissa}.Float32(), nil
}
