package ieee754

import (
	"math"
	"testing"

	"github.com/x448/float16"
)

func ldexp32(exp int) float32 {
	return float32(math.Ldexp(1, exp))
}

func TestNarrow16Boundaries(t *testing.T) {
	cases := []struct {
		name  string
		value float32
		want  Fields16
		class Class
	}{
		{"1", 1, Fields16{0, 15, 0}, ClassNormal},
		{"-1", -1, Fields16{1, 15, 0}, ClassNormal},
		{"2", 2, Fields16{0, 16, 0}, ClassNormal},
		{"0.5", 0.5, Fields16{0, 14, 0}, ClassNormal},
		{"smallest normal", ldexp32(-14), Fields16{0, 1, 0}, ClassNormal},
		{"below smallest normal", ldexp32(-15), Fields16{0, 0, 0x200}, ClassSubnormal},
		{"negative subnormal", -ldexp32(-15), Fields16{1, 0, 0x200}, ClassSubnormal},
		{"2^-16", ldexp32(-16), Fields16{0, 0, 0x100}, ClassSubnormal},
		{"2^-20", ldexp32(-20), Fields16{0, 0, 0x10}, ClassSubnormal},
		{"2^-23", ldexp32(-23), Fields16{0, 0, 2}, ClassSubnormal},
		{"largest finite", 65504, Fields16{0, 30, 0x3FF}, ClassNormal},
		{"overflow", 65536, Fields16{0, 31, 0}, ClassInf},
		{"well past overflow", 100000, Fields16{0, 31, 0}, ClassInf},
		{"negative overflow", -65536, Fields16{1, 31, 0}, ClassInf},
	}

	for _, c := range cases {
		if got := Narrow16(c.value); got != c.want {
			t.Errorf("%s: Narrow16(%g) = {%d %d %#x}, want {%d %d %#x}",
				c.name, c.value, got.Sign, got.Exponent, got.Mantissa,
				c.want.Sign, c.want.Exponent, c.want.Mantissa)
		} else if got.Class() != c.class {
			t.Errorf("%s: class = %v, want %v", c.name, got.Class(), c.class)
		}
	}
}

func TestNarrow16Specials(t *testing.T) {
	nan := Narrow16(float32(math.NaN()))
	if (nan != Fields16{0, 31, 1}) {
		t.Errorf("Narrow16(NaN) = %+v, want {0 31 1}", nan)
	}
	// The sign of a NaN input is dropped, not propagated.
	negNaN := Narrow16(math.Float32frombits(0xFFC00000))
	if negNaN != nan {
		t.Errorf("Narrow16(-NaN) = %+v, want %+v", negNaN, nan)
	}

	if got := Narrow16(float32(math.Inf(1))); (got != Fields16{0, 31, 0}) {
		t.Errorf("Narrow16(+Inf) = %+v", got)
	}
	if got := Narrow16(float32(math.Inf(-1))); (got != Fields16{1, 31, 0}) {
		t.Errorf("Narrow16(-Inf) = %+v", got)
	}

	if got := Narrow16(0); (got != Fields16{0, 0, 0}) || got.Class() != ClassZero {
		t.Errorf("Narrow16(+0) = %+v (%v)", got, got.Class())
	}
	if got := Narrow16(float32(math.Copysign(0, -1))); (got != Fields16{1, 0, 0}) || got.Class() != ClassZero {
		t.Errorf("Narrow16(-0) = %+v (%v)", got, got.Class())
	}
}

func TestNarrow16SubnormalFlush(t *testing.T) {
	// Single-precision subnormals collapse to zero with their sign.
	if got := Narrow16(ldexp32(-140)); (got != Fields16{0, 0, 0}) {
		t.Errorf("Narrow16(2^-140) = %+v, want +0", got)
	}
	if got := Narrow16(-ldexp32(-140)); (got != Fields16{1, 0, 0}) {
		t.Errorf("Narrow16(-2^-140) = %+v, want -0", got)
	}

	// The underflow guard fires once the shift reaches the mantissa width,
	// so 2^-24 flushes even though an ideal half subnormal could hold it.
	if got := Narrow16(ldexp32(-24)); (got != Fields16{0, 0, 0}) {
		t.Errorf("Narrow16(2^-24) = %+v, want +0", got)
	}
	if got := Narrow16(ldexp32(-25)); (got != Fields16{0, 0, 0}) {
		t.Errorf("Narrow16(2^-25) = %+v, want +0", got)
	}
}

func TestNarrow16TruncatesDroppedBits(t *testing.T) {
	// 1.9999999 carries a full mantissa; round-to-nearest would produce 2.0
	// but the reference cuts the dropped bits.
	full := math.Float32frombits(0x3FFFFFFF)
	if got := Narrow16(full); (got != Fields16{0, 15, 0x3FF}) {
		t.Errorf("Narrow16(%g) = %+v, want {0 15 0x3ff}", full, got)
	}

	// 65520 is the classic round-to-infinity boundary; truncation keeps it
	// at the largest finite half value instead.
	if got := Narrow16(65520); (got != Fields16{0, 30, 0x3FF}) {
		t.Errorf("Narrow16(65520) = %+v, want {0 30 0x3ff}", got)
	}
}

// For values half-precision represents exactly, truncation and
// round-to-nearest agree, so an independent half-float implementation must
// produce our packed bits verbatim.
func TestNarrow16AgreesWithFloat16(t *testing.T) {
	exact := []float32{
		0, float32(math.Copysign(0, -1)), 1, -1, 1.5, 0.5, 2, -2, 0.25,
		65504, -65504, 2048, ldexp32(-14), ldexp32(-15), ldexp32(-23),
		float32(math.Inf(1)), float32(math.Inf(-1)),
	}
	for _, v := range exact {
		want := float16.Fromfloat32(v).Bits()
		if got := Narrow16(v).Bits(); got != want {
			t.Errorf("Narrow16(%g).Bits() = %#04x, float16 reference says %#04x", v, got, want)
		}
	}
}

func TestUnpack16RoundTrip(t *testing.T) {
	for b := 0; b <= 0xFFFF; b++ {
		bits := uint16(b)
		f := Unpack16(bits)
		if f.Bits() != bits {
			t.Fatalf("Unpack16(%#04x).Bits() = %#04x", bits, f.Bits())
		}
		if f.Exponent > maxExp16 || f.Mantissa > mantMask16 || f.Sign > 1 {
			t.Fatalf("Unpack16(%#04x) fields out of range: %+v", bits, f)
		}
	}
}

func TestFields16Renderings(t *testing.T) {
	one := Narrow16(1)
	if got := one.Hex(); got != "0x3C00" {
		t.Errorf("Hex(1.0) = %q", got)
	}
	if got := one.Binary(); got != "0011110000000000" {
		t.Errorf("Binary(1.0) = %q", got)
	}
	if got := Narrow16(-2).Hex(); got != "0xC000" {
		t.Errorf("Hex(-2.0) = %q", got)
	}
}
