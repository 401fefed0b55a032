package vectors

import (
	"math"

	"github.com/23skdu/longbow-caliper/internal/ieee754"
)

// encodeValues32 lists the canonical single-precision probe values:
// exact powers of two across the normal and subnormal ranges, signed
// zeros, the non-finite values, and a handful of decimals that do not
// round-trip exactly.
func encodeValues32() []float64 {
	return []float64{
		0.0, math.Copysign(0, -1), 1.0, -1.0, 2.0, 0.5, 0.25, -0.5,
		math.Inf(1), math.Inf(-1), math.NaN(),
		math.Ldexp(1, 10), math.Ldexp(1, -10),
		math.Ldexp(1, 20), math.Ldexp(1, -20),
		math.Ldexp(1, -126),
		math.MaxFloat32,
		math.Ldexp(1, -149), math.Ldexp(1, -140), math.Ldexp(1, -145),
		3.14159265359, 2.71828182846,
		100.0, 1000.0, 0.1, 0.01,
	}
}

type decodeCase struct {
	sign, exponent, mantissa uint32
	description              string
}

// decodeCases32 lists field triples covering every class boundary of the
// single-precision format.
func decodeCases32() []decodeCase {
	return []decodeCase{
		{0, 0, 0, "positive zero"},
		{1, 0, 0, "negative zero"},
		{0, 127, 0, "1.0"},
		{1, 127, 0, "-1.0"},
		{0, 128, 0, "2.0"},
		{0, 126, 0, "0.5"},
		{0, 255, 0, "positive infinity"},
		{1, 255, 0, "negative infinity"},
		{0, 255, 1, "NaN"},
		{0, 1, 0, "smallest normal"},
		{0, 0, 1, "smallest subnormal"},
		{0, 254, 0x7FFFFF, "largest normal"},
		{0, 0, 0x7FFFFF, "largest subnormal"},
		{0, 127, 0x400000, "1.5"},
		{0, 128, 0x490FDB, "pi"},
	}
}

// encodeValues16 lists the canonical narrowing probes, including one
// overflow (100000) and two values that land below the half-precision
// normal range.
func encodeValues16() []float64 {
	return []float64{
		0.0, 1.0, -1.0, 2.0, 0.5,
		65504.0, 100000.0,
		math.Ldexp(1, -20), math.Ldexp(1, -16),
	}
}

// conversionValues extends the narrowing probes with the half-precision
// range boundaries on both sides.
func conversionValues() []float64 {
	vals := encodeValues16()
	return append(vals,
		math.Ldexp(1, -14), // smallest normal half
		math.Ldexp(1, -15), // subnormal half
		math.Ldexp(1, -25), // below the subnormal range, flushes to zero
		65520.0,            // above the largest half, truncates back onto it
		65536.0,            // first power of two past the half range
	)
}

// Generate builds the canonical reference suite.
func Generate() Suite {
	return GenerateWith(nil)
}

// GenerateWith builds the canonical suite with caller-supplied checks
// folded into every value-driven bucket. The decode bucket is field
// driven and takes no extras.
func GenerateWith(extras []Check) Suite {
	enc32 := encodeValues32()
	enc16 := encodeValues16()
	conv := conversionValues()
	for _, c := range extras {
		enc32 = append(enc32, c.Value)
		enc16 = append(enc16, c.Value)
		conv = append(conv, c.Value)
	}

	var s Suite
	for _, v := range enc32 {
		f := ieee754.Decompose32(float32(v))
		s.FP32Encode = append(s.FP32Encode, EncodeVector32{
			Input:    Scalar(v),
			Expected: NewComponents32(f),
		})
	}
	for _, c := range decodeCases32() {
		f := ieee754.Fields32{Sign: c.sign, Exponent: c.exponent, Mantissa: c.mantissa}
		s.FP32Decode = append(s.FP32Decode, DecodeVector32{
			Sign:        c.sign,
			Exponent:    c.exponent,
			Mantissa:    c.mantissa,
			Expected:    Scalar(float64(f.Float32())),
			Description: c.description,
		})
	}
	for _, v := range enc16 {
		f := ieee754.Narrow16(float32(v))
		s.FP16Encode = append(s.FP16Encode, EncodeVector16{
			Input:    Scalar(v),
			Expected: NewComponents16(f),
		})
	}
	for _, v := range conv {
		s.Conversions = append(s.Conversions, Conversion{
			Input:  Scalar(v),
			Single: NewComponents32(ieee754.Decompose32(float32(v))),
			Half:   NewComponents16(ieee754.Narrow16(float32(v))),
		})
	}
	return s
}
