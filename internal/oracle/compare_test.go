package oracle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-caliper/internal/vectors"
)

func TestCompareIdenticalSuites(t *testing.T) {
	report, err := Compare(vectors.Generate(), vectors.Generate(), Options{})
	require.NoError(t, err)
	assert.True(t, report.Ok())
	assert.Equal(t, vectors.Generate().Len(), report.Checked())
}

func TestCompareFindsDrift(t *testing.T) {
	have := vectors.Generate()
	want := vectors.Generate()

	have.FP32Encode[0].Expected.Sign = 1
	have.FP32Decode[3].Description = "minus one"
	have.FP16Encode[3].Expected.Mantissa++
	have.Conversions[2].Half.Exponent++

	report, err := Compare(have, want, Options{})
	require.Error(t, err)
	assert.Equal(t, 4, report.Failed())

	msg := err.Error()
	assert.Contains(t, msg, "fp32_encode[0]")
	assert.Contains(t, msg, "sign 1 != 0")
	assert.Contains(t, msg, `description "minus one" != "-1.0"`)
	assert.Contains(t, msg, "fp16_encode[3]")
	assert.Contains(t, msg, "conversions[2]")
	assert.Contains(t, msg, "fp16 exponent")
}

func TestCompareInputDrift(t *testing.T) {
	have := vectors.Generate()
	want := vectors.Generate()
	have.FP16Encode[1].Input = 3

	report, err := Compare(have, want, Options{})
	require.Error(t, err)
	assert.Equal(t, 1, report.Failed())
	assert.Contains(t, err.Error(), "input 3 != 1")
}

func TestCompareLengthMismatch(t *testing.T) {
	have := vectors.Generate()
	want := vectors.Generate()
	have.Conversions = have.Conversions[:5]

	_, err := Compare(have, want, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversions: length 5 != 14")
}

func TestScalarEqual(t *testing.T) {
	assert.True(t, scalarEqual(math.NaN(), math.NaN(), 0))
	assert.False(t, scalarEqual(math.NaN(), 1, 0))
	assert.True(t, scalarEqual(math.Inf(1), math.Inf(1), 0))
	assert.False(t, scalarEqual(math.Inf(1), math.Inf(-1), 0))
	assert.False(t, scalarEqual(math.Inf(1), math.MaxFloat64, 1))

	// Exact mode distinguishes the zero signs, tolerant mode does not.
	negZero := math.Copysign(0, -1)
	assert.False(t, scalarEqual(0, negZero, 0))
	assert.True(t, scalarEqual(0, negZero, 1e-12))

	assert.True(t, scalarEqual(1, 1, 0))
	assert.False(t, scalarEqual(1, 1+1e-12, 0))
	assert.True(t, scalarEqual(1, 1+1e-12, 1e-9))
}
