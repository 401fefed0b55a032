package oracle

import (
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/23skdu/longbow-caliper/internal/vectors"
)

// Compare diffs two suites bucket by bucket. Buckets must have equal
// lengths; vectors are compared field by field with have on the left
// and want on the right. Finite decode values honor Options.Tolerance,
// everything else is exact.
func Compare(have, want vectors.Suite, opts Options) (Report, error) {
	report := newReport()
	var errs *multierror.Error

	if len(have.FP32Encode) != len(want.FP32Encode) {
		errs = multierror.Append(errs, lengthErr(vectors.BucketFP32Encode, len(have.FP32Encode), len(want.FP32Encode)))
	} else {
		for i := range have.FP32Encode {
			h, w := have.FP32Encode[i], want.FP32Encode[i]
			diffs := diffInput(h.Input, w.Input)
			diffs = append(diffs, diff32(h.Expected, w.Expected)...)
			report.add(vectors.BucketFP32Encode, len(diffs) > 0)
			if len(diffs) > 0 {
				errs = multierror.Append(errs, vectorErr(vectors.BucketFP32Encode, i, w.Input, diffs))
			}
		}
	}

	if len(have.FP32Decode) != len(want.FP32Decode) {
		errs = multierror.Append(errs, lengthErr(vectors.BucketFP32Decode, len(have.FP32Decode), len(want.FP32Decode)))
	} else {
		for i := range have.FP32Decode {
			h, w := have.FP32Decode[i], want.FP32Decode[i]
			var diffs []string
			if h.Sign != w.Sign {
				diffs = append(diffs, fmt.Sprintf("sign %d != %d", h.Sign, w.Sign))
			}
			if h.Exponent != w.Exponent {
				diffs = append(diffs, fmt.Sprintf("exponent %d != %d", h.Exponent, w.Exponent))
			}
			if h.Mantissa != w.Mantissa {
				diffs = append(diffs, fmt.Sprintf("mantissa %d != %d", h.Mantissa, w.Mantissa))
			}
			if !scalarEqual(float64(h.Expected), float64(w.Expected), opts.Tolerance) {
				diffs = append(diffs, fmt.Sprintf("value %s != %s", h.Expected, w.Expected))
			}
			if h.Description != w.Description {
				diffs = append(diffs, fmt.Sprintf("description %q != %q", h.Description, w.Description))
			}
			report.add(vectors.BucketFP32Decode, len(diffs) > 0)
			if len(diffs) > 0 {
				errs = multierror.Append(errs, fmt.Errorf("%s[%d] (%s): %s",
					vectors.BucketFP32Decode, i, w.Description, joinDiffs(diffs)))
			}
		}
	}

	if len(have.FP16Encode) != len(want.FP16Encode) {
		errs = multierror.Append(errs, lengthErr(vectors.BucketFP16Encode, len(have.FP16Encode), len(want.FP16Encode)))
	} else {
		for i := range have.FP16Encode {
			h, w := have.FP16Encode[i], want.FP16Encode[i]
			diffs := diffInput(h.Input, w.Input)
			diffs = append(diffs, diff16(h.Expected, w.Expected)...)
			report.add(vectors.BucketFP16Encode, len(diffs) > 0)
			if len(diffs) > 0 {
				errs = multierror.Append(errs, vectorErr(vectors.BucketFP16Encode, i, w.Input, diffs))
			}
		}
	}

	if len(have.Conversions) != len(want.Conversions) {
		errs = multierror.Append(errs, lengthErr(vectors.BucketConversions, len(have.Conversions), len(want.Conversions)))
	} else {
		for i := range have.Conversions {
			h, w := have.Conversions[i], want.Conversions[i]
			diffs := diffInput(h.Input, w.Input)
			diffs = append(diffs, prefixDiffs("fp32 ", diff32(h.Single, w.Single))...)
			diffs = append(diffs, prefixDiffs("fp16 ", diff16(h.Half, w.Half))...)
			report.add(vectors.BucketConversions, len(diffs) > 0)
			if len(diffs) > 0 {
				errs = multierror.Append(errs, vectorErr(vectors.BucketConversions, i, w.Input, diffs))
			}
		}
	}

	return report, errs.ErrorOrNil()
}

// scalarEqual compares two values the way the oracle means it: NaN
// matches NaN, infinities match by sign, and finite values are
// bit-identical unless a tolerance widens the band.
func scalarEqual(a, b, tol float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	if tol == 0 {
		return math.Float64bits(a) == math.Float64bits(b)
	}
	return scalar.EqualWithinAbsOrRel(a, b, tol, tol)
}

func diffInput(have, want vectors.Scalar) []string {
	if scalarEqual(float64(have), float64(want), 0) {
		return nil
	}
	return []string{fmt.Sprintf("input %s != %s", have, want)}
}

func diff32(have, want vectors.Components32) []string {
	var d []string
	if have.Sign != want.Sign {
		d = append(d, fmt.Sprintf("sign %d != %d", have.Sign, want.Sign))
	}
	if have.Exponent != want.Exponent {
		d = append(d, fmt.Sprintf("exponent %d != %d", have.Exponent, want.Exponent))
	}
	if have.Mantissa != want.Mantissa {
		d = append(d, fmt.Sprintf("mantissa %d != %d", have.Mantissa, want.Mantissa))
	}
	if have.Binary != want.Binary {
		d = append(d, fmt.Sprintf("binary %q != %q", have.Binary, want.Binary))
	}
	if have.Hex != want.Hex {
		d = append(d, fmt.Sprintf("hex %q != %q", have.Hex, want.Hex))
	}
	return append(d, diffFlags(
		[5]bool{have.IsZero, have.IsSubnormal, have.IsNormal, have.IsInfinite, have.IsNaN},
		[5]bool{want.IsZero, want.IsSubnormal, want.IsNormal, want.IsInfinite, want.IsNaN})...)
}

func diff16(have, want vectors.Components16) []string {
	var d []string
	if have.Sign != want.Sign {
		d = append(d, fmt.Sprintf("sign %d != %d", have.Sign, want.Sign))
	}
	if have.Exponent != want.Exponent {
		d = append(d, fmt.Sprintf("exponent %d != %d", have.Exponent, want.Exponent))
	}
	if have.Mantissa != want.Mantissa {
		d = append(d, fmt.Sprintf("mantissa %d != %d", have.Mantissa, want.Mantissa))
	}
	return append(d, diffFlags(
		[5]bool{have.IsZero, have.IsSubnormal, have.IsNormal, have.IsInfinite, have.IsNaN},
		[5]bool{want.IsZero, want.IsSubnormal, want.IsNormal, want.IsInfinite, want.IsNaN})...)
}

var flagNames = [5]string{"isZero", "isSubnormal", "isNormal", "isInfinite", "isNaN"}

func diffFlags(have, want [5]bool) []string {
	var d []string
	for i := range flagNames {
		if have[i] != want[i] {
			d = append(d, fmt.Sprintf("%s %t != %t", flagNames[i], have[i], want[i]))
		}
	}
	return d
}

func prefixDiffs(prefix string, diffs []string) []string {
	for i, d := range diffs {
		diffs[i] = prefix + d
	}
	return diffs
}

func joinDiffs(diffs []string) string {
	return strings.Join(diffs, "; ")
}

func vectorErr(bucket string, i int, input vectors.Scalar, diffs []string) error {
	return fmt.Errorf("%s[%d] (input %s): %s", bucket, i, input, joinDiffs(diffs))
}

func lengthErr(bucket string, have, want int) error {
	return fmt.Errorf("%s: length %d != %d", bucket, have, want)
}
