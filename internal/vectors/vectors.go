// Package vectors assembles the reference test-vector suite: canonical
// inputs pushed through the bit-level codecs in internal/ieee754 and
// packaged into wire-friendly records. The suite serializes to JSON and
// CBOR directly and to Arrow record batches via BatchBuilder.
package vectors

import (
	"fmt"

	"github.com/23skdu/longbow-caliper/internal/ieee754"
)

// Bucket names, in suite order.
const (
	BucketFP32Encode  = "fp32_encode"
	BucketFP32Decode  = "fp32_decode"
	BucketFP16Encode  = "fp16_encode"
	BucketConversions = "conversions"
)

// Buckets returns the bucket names in canonical suite order.
func Buckets() []string {
	return []string{BucketFP32Encode, BucketFP32Decode, BucketFP16Encode, BucketConversions}
}

// Components32 is the wire form of a decomposed single-precision value:
// the raw fields, both textual renderings, and one classification flag
// per class. Exactly one flag is true in a well-formed record.
type Components32 struct {
	Sign        uint32 `json:"sign"`
	Exponent    uint32 `json:"exponent"`
	Mantissa    uint32 `json:"mantissa"`
	Binary      string `json:"binary"`
	Hex         string `json:"hex"`
	IsZero      bool   `json:"isZero"`
	IsSubnormal bool   `json:"isSubnormal"`
	IsNormal    bool   `json:"isNormal"`
	IsInfinite  bool   `json:"isInfinite"`
	IsNaN       bool   `json:"isNaN"`
}

// NewComponents32 fills a wire record from decomposed fields.
func NewComponents32(f ieee754.Fields32) Components32 {
	c := Components32{
		Sign:     f.Sign,
		Exponent: f.Exponent,
		Mantissa: f.Mantissa,
		Binary:   f.Binary(),
		Hex:      f.Hex(),
	}
	setFlags(f.Class(), &c.IsZero, &c.IsSubnormal, &c.IsNormal, &c.IsInfinite, &c.IsNaN)
	return c
}

// Fields reassembles the raw fields for bit-level comparison.
func (c Components32) Fields() ieee754.Fields32 {
	return ieee754.Fields32{Sign: c.Sign, Exponent: c.Exponent, Mantissa: c.Mantissa}
}

// Components16 is the wire form of a half-precision decomposition. Half
// records carry no textual renderings.
type Components16 struct {
	Sign        uint16 `json:"sign"`
	Exponent    uint16 `json:"exponent"`
	Mantissa    uint16 `json:"mantissa"`
	IsZero      bool   `json:"isZero"`
	IsSubnormal bool   `json:"isSubnormal"`
	IsNormal    bool   `json:"isNormal"`
	IsInfinite  bool   `json:"isInfinite"`
	IsNaN       bool   `json:"isNaN"`
}

// NewComponents16 fills a wire record from narrowed fields.
func NewComponents16(f ieee754.Fields16) Components16 {
	c := Components16{
		Sign:     f.Sign,
		Exponent: f.Exponent,
		Mantissa: f.Mantissa,
	}
	setFlags(f.Class(), &c.IsZero, &c.IsSubnormal, &c.IsNormal, &c.IsInfinite, &c.IsNaN)
	return c
}

// Fields reassembles the raw fields for bit-level comparison.
func (c Components16) Fields() ieee754.Fields16 {
	return ieee754.Fields16{Sign: c.Sign, Exponent: c.Exponent, Mantissa: c.Mantissa}
}

func setFlags(class ieee754.Class, zero, subnormal, normal, inf, nan *bool) {
	switch class {
	case ieee754.ClassZero:
		*zero = true
	case ieee754.ClassSubnormal:
		*subnormal = true
	case ieee754.ClassNormal:
		*normal = true
	case ieee754.ClassInf:
		*inf = true
	case ieee754.ClassNaN:
		*nan = true
	}
}

// EncodeVector32 pairs an input value with its expected decomposition.
type EncodeVector32 struct {
	Input    Scalar       `json:"input"`
	Expected Components32 `json:"expected"`
}

// DecodeVector32 pairs raw fields with the value they compose to.
type DecodeVector32 struct {
	Sign        uint32 `json:"sign"`
	Exponent    uint32 `json:"exponent"`
	Mantissa    uint32 `json:"mantissa"`
	Expected    Scalar `json:"expected"`
	Description string `json:"description"`
}

// EncodeVector16 pairs an input value with its expected narrowing.
type EncodeVector16 struct {
	Input    Scalar       `json:"input"`
	Expected Components16 `json:"expected"`
}

// Conversion records both decompositions of one single-to-half narrowing.
type Conversion struct {
	Input  Scalar       `json:"input"`
	Single Components32 `json:"fp32"`
	Half   Components16 `json:"fp16"`
}

// Suite is the complete reference corpus, one slice per bucket.
type Suite struct {
	FP32Encode  []EncodeVector32 `json:"fp32_encode"`
	FP32Decode  []DecodeVector32 `json:"fp32_decode"`
	FP16Encode  []EncodeVector16 `json:"fp16_encode"`
	Conversions []Conversion     `json:"conversions"`
}

// Len reports the total number of vectors across all buckets.
func (s Suite) Len() int {
	return len(s.FP32Encode) + len(s.FP32Decode) + len(s.FP16Encode) + len(s.Conversions)
}

// BucketLen reports the number of vectors in one bucket.
func (s Suite) BucketLen(bucket string) (int, error) {
	switch bucket {
	case BucketFP32Encode:
		return len(s.FP32Encode), nil
	case BucketFP32Decode:
		return len(s.FP32Decode), nil
	case BucketFP16Encode:
		return len(s.FP16Encode), nil
	case BucketConversions:
		return len(s.Conversions), nil
	}
	return 0, fmt.Errorf("unknown bucket %q", bucket)
}
