package vectors

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/x448/float16"
)

// Arrow schemas, one per bucket. Half-precision values ride in a
// Float32 column widened bit-for-bit from the packed fields; the exact
// bit pattern is always in the bits column.
var (
	SchemaFP32Encode = arrow.NewSchema([]arrow.Field{
		{Name: "input", Type: arrow.PrimitiveTypes.Float64},
		{Name: "sign", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "exponent", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "mantissa", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "bits", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "class", Type: arrow.BinaryTypes.String},
		{Name: "binary", Type: arrow.BinaryTypes.String},
		{Name: "hex", Type: arrow.BinaryTypes.String},
	}, nil)

	SchemaFP32Decode = arrow.NewSchema([]arrow.Field{
		{Name: "sign", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "exponent", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "mantissa", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "expected", Type: arrow.PrimitiveTypes.Float32},
		{Name: "description", Type: arrow.BinaryTypes.String},
	}, nil)

	SchemaFP16Encode = arrow.NewSchema([]arrow.Field{
		{Name: "input", Type: arrow.PrimitiveTypes.Float64},
		{Name: "sign", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "exponent", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "mantissa", Type: arrow.PrimitiveTypes.Uint16},
		{Name: "bits", Type: arrow.PrimitiveTypes.Uint16},
		{Name: "value", Type: arrow.PrimitiveTypes.Float32},
		{Name: "class", Type: arrow.BinaryTypes.String},
	}, nil)

	SchemaConversions = arrow.NewSchema([]arrow.Field{
		{Name: "input", Type: arrow.PrimitiveTypes.Float64},
		{Name: "bits32", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "class32", Type: arrow.BinaryTypes.String},
		{Name: "bits16", Type: arrow.PrimitiveTypes.Uint16},
		{Name: "class16", Type: arrow.BinaryTypes.String},
		{Name: "half", Type: arrow.PrimitiveTypes.Float32},
	}, nil)
)

// BucketSchema returns the schema for one bucket.
func BucketSchema(bucket string) (*arrow.Schema, error) {
	switch bucket {
	case BucketFP32Encode:
		return SchemaFP32Encode, nil
	case BucketFP32Decode:
		return SchemaFP32Decode, nil
	case BucketFP16Encode:
		return SchemaFP16Encode, nil
	case BucketConversions:
		return SchemaConversions, nil
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

// BatchBuilder turns suite buckets into Arrow record batches. The
// caller owns every returned batch and must Release it.
type BatchBuilder struct {
	mem memory.Allocator
}

// NewBatchBuilder creates a new builder.
func NewBatchBuilder(mem memory.Allocator) *BatchBuilder {
	return &BatchBuilder{mem: mem}
}

// Bucket builds the batch for one named bucket of the suite.
func (b *BatchBuilder) Bucket(s Suite, bucket string) (arrow.RecordBatch, error) {
	switch bucket {
	case BucketFP32Encode:
		return b.FP32Encode(s.FP32Encode), nil
	case BucketFP32Decode:
		return b.FP32Decode(s.FP32Decode), nil
	case BucketFP16Encode:
		return b.FP16Encode(s.FP16Encode), nil
	case BucketConversions:
		return b.Conversions(s.Conversions), nil
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

// FP32Encode builds the single-precision encode batch.
func (b *BatchBuilder) FP32Encode(vecs []EncodeVector32) arrow.RecordBatch {
	input := array.NewFloat64Builder(b.mem)
	defer input.Release()
	sign := array.NewUint8Builder(b.mem)
	defer sign.Release()
	exponent := array.NewUint8Builder(b.mem)
	defer exponent.Release()
	mantissa := array.NewUint32Builder(b.mem)
	defer mantissa.Release()
	bits := array.NewUint32Builder(b.mem)
	defer bits.Release()
	class := array.NewStringBuilder(b.mem)
	defer class.Release()
	binary := array.NewStringBuilder(b.mem)
	defer binary.Release()
	hex := array.NewStringBuilder(b.mem)
	defer hex.Release()

	for _, v := range vecs {
		f := v.Expected.Fields()
		input.Append(float64(v.Input))
		sign.Append(uint8(f.Sign))
		exponent.Append(uint8(f.Exponent))
		mantissa.Append(f.Mantissa)
		bits.Append(f.Bits())
		class.Append(f.Class().String())
		binary.Append(v.Expected.Binary)
		hex.Append(v.Expected.Hex)
	}

	cols := []arrow.Array{
		input.NewArray(), sign.NewArray(), exponent.NewArray(), mantissa.NewArray(),
		bits.NewArray(), class.NewArray(), binary.NewArray(), hex.NewArray(),
	}
	defer releaseAll(cols)
	return array.NewRecordBatch(SchemaFP32Encode, cols, int64(len(vecs)))
}

// FP32Decode builds the single-precision decode batch.
func (b *BatchBuilder) FP32Decode(vecs []DecodeVector32) arrow.RecordBatch {
	sign := array.NewUint8Builder(b.mem)
	defer sign.Release()
	exponent := array.NewUint8Builder(b.mem)
	defer exponent.Release()
	mantissa := array.NewUint32Builder(b.mem)
	defer mantissa.Release()
	expected := array.NewFloat32Builder(b.mem)
	defer expected.Release()
	description := array.NewStringBuilder(b.mem)
	defer description.Release()

	for _, v := range vecs {
		sign.Append(uint8(v.Sign))
		exponent.Append(uint8(v.Exponent))
		mantissa.Append(v.Mantissa)
		expected.Append(float32(v.Expected))
		description.Append(v.Description)
	}

	cols := []arrow.Array{
		sign.NewArray(), exponent.NewArray(), mantissa.NewArray(),
		expected.NewArray(), description.NewArray(),
	}
	defer releaseAll(cols)
	return array.NewRecordBatch(SchemaFP32Decode, cols, int64(len(vecs)))
}

// FP16Encode builds the half-precision encode batch.
func (b *BatchBuilder) FP16Encode(vecs []EncodeVector16) arrow.RecordBatch {
	input := array.NewFloat64Builder(b.mem)
	defer input.Release()
	sign := array.NewUint8Builder(b.mem)
	defer sign.Release()
	exponent := array.NewUint8Builder(b.mem)
	defer exponent.Release()
	mantissa := array.NewUint16Builder(b.mem)
	defer mantissa.Release()
	bits := array.NewUint16Builder(b.mem)
	defer bits.Release()
	value := array.NewFloat32Builder(b.mem)
	defer value.Release()
	class := array.NewStringBuilder(b.mem)
	defer class.Release()

	for _, v := range vecs {
		f := v.Expected.Fields()
		input.Append(float64(v.Input))
		sign.Append(uint8(f.Sign))
		exponent.Append(uint8(f.Exponent))
		mantissa.Append(f.Mantissa)
		bits.Append(f.Bits())
		value.Append(float16.Frombits(f.Bits()).Float32())
		class.Append(f.Class().String())
	}

	cols := []arrow.Array{
		input.NewArray(), sign.NewArray(), exponent.NewArray(), mantissa.NewArray(),
		bits.NewArray(), value.NewArray(), class.NewArray(),
	}
	defer releaseAll(cols)
	return array.NewRecordBatch(SchemaFP16Encode, cols, int64(len(vecs)))
}

// Conversions builds the narrowing batch, one row per input with both
// bit patterns side by side.
func (b *BatchBuilder) Conversions(vecs []Conversion) arrow.RecordBatch {
	input := array.NewFloat64Builder(b.mem)
	defer input.Release()
	bits32 := array.NewUint32Builder(b.mem)
	defer bits32.Release()
	class32 := array.NewStringBuilder(b.mem)
	defer class32.Release()
	bits16 := array.NewUint16Builder(b.mem)
	defer bits16.Release()
	class16 := array.NewStringBuilder(b.mem)
	defer class16.Release()
	half := array.NewFloat32Builder(b.mem)
	defer half.Release()

	for _, v := range vecs {
		single := v.Single.Fields()
		narrowed := v.Half.Fields()
		input.Append(float64(v.Input))
		bits32.Append(single.Bits())
		class32.Append(single.Class().String())
		bits16.Append(narrowed.Bits())
		class16.Append(narrowed.Class().String())
		half.Append(float16.Frombits(narrowed.Bits()).Float32())
	}

	cols := []arrow.Array{
		input.NewArray(), bits32.NewArray(), class32.NewArray(),
		bits16.NewArray(), class16.NewArray(), half.NewArray(),
	}
	defer releaseAll(cols)
	return array.NewRecordBatch(SchemaConversions, cols, int64(len(vecs)))
}

func releaseAll(cols []arrow.Array) {
	for _, c := range cols {
		c.Release()
	}
}
