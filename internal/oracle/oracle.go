// Package oracle checks reference suites for correctness. Verify
// recomputes every vector in a suite from its inputs and reports any
// drift; Compare diffs two suites of the same shape field by field.
// All mismatches are collected, not just the first.
package oracle

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/23skdu/longbow-caliper/internal/ieee754"
	"github.com/23skdu/longbow-caliper/internal/vectors"
)

// Options tune a verification run.
type Options struct {
	// Tolerance widens the decode value comparison to an absolute or
	// relative band. Zero keeps the comparison bit-exact.
	Tolerance float64
}

// Counts tallies one bucket of a run.
type Counts struct {
	Checked int
	Failed  int
}

// Report aggregates per-bucket tallies for one run.
type Report struct {
	Buckets map[string]Counts
}

func newReport() Report {
	return Report{Buckets: make(map[string]Counts, 4)}
}

func (r Report) add(bucket string, failed bool) {
	c := r.Buckets[bucket]
	c.Checked++
	if failed {
		c.Failed++
	}
	r.Buckets[bucket] = c
}

// Checked returns the total number of vectors examined.
func (r Report) Checked() int {
	n := 0
	for _, c := range r.Buckets {
		n += c.Checked
	}
	return n
}

// Failed returns the total number of mismatched vectors.
func (r Report) Failed() int {
	n := 0
	for _, c := range r.Buckets {
		n += c.Failed
	}
	return n
}

// Ok reports whether the run found no mismatches.
func (r Report) Ok() bool {
	return r.Failed() == 0
}

// Verify recomputes every vector of the suite and returns a report plus
// one aggregated error naming each vector that disagrees with the
// codecs. The decode bucket goes through Compose32, so out-of-range
// field triples surface as failures instead of silently truncating.
func Verify(s vectors.Suite, opts Options) (Report, error) {
	report := newReport()
	var errs *multierror.Error

	for i, v := range s.FP32Encode {
		want := vectors.NewComponents32(ieee754.Decompose32(float32(v.Input)))
		diffs := diff32(v.Expected, want)
		report.add(vectors.BucketFP32Encode, len(diffs) > 0)
		if len(diffs) > 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s[%d] (input %s): %s",
				vectors.BucketFP32Encode, i, v.Input, joinDiffs(diffs)))
		}
	}

	for i, v := range s.FP32Decode {
		composed, err := ieee754.Compose32(v.Sign, v.Exponent, v.Mantissa)
		switch {
		case err != nil:
			report.add(vectors.BucketFP32Decode, true)
			errs = multierror.Append(errs, fmt.Errorf("%s[%d] (%s): %w",
				vectors.BucketFP32Decode, i, v.Description, err))
		case !scalarEqual(float64(v.Expected), float64(composed), opts.Tolerance):
			report.add(vectors.BucketFP32Decode, true)
			errs = multierror.Append(errs, fmt.Errorf("%s[%d] (%s): value %s != %s",
				vectors.BucketFP32Decode, i, v.Description,
				v.Expected, vectors.Scalar(composed)))
		default:
			report.add(vectors.BucketFP32Decode, false)
		}
	}

	for i, v := range s.FP16Encode {
		want := vectors.NewComponents16(ieee754.Narrow16(float32(v.Input)))
		diffs := diff16(v.Expected, want)
		report.add(vectors.BucketFP16Encode, len(diffs) > 0)
		if len(diffs) > 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s[%d] (input %s): %s",
				vectors.BucketFP16Encode, i, v.Input, joinDiffs(diffs)))
		}
	}

	for i, v := range s.Conversions {
		single := vectors.NewComponents32(ieee754.Decompose32(float32(v.Input)))
		half := vectors.NewComponents16(ieee754.Narrow16(float32(v.Input)))
		diffs := prefixDiffs("fp32 ", diff32(v.Single, single))
		diffs = append(diffs, prefixDiffs("fp16 ", diff16(v.Half, half))...)
		report.add(vectors.BucketConversions, len(diffs) > 0)
		if len(diffs) > 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s[%d] (input %s): %s",
				vectors.BucketConversions, i, v.Input, joinDiffs(diffs)))
		}
	}

	return report, errs.ErrorOrNil()
}
