package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/23skdu/longbow-caliper/internal/vectors"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, s vectors.Suite) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func TestServer_Full(t *testing.T) {
	suite := vectors.Generate()
	pub := &mockPublisher{}
	srv := NewServer(suite, pub, 0, 1024)

	t.Run("Decompose CBOR", func(t *testing.T) {
		values := []float64{1.0, math.Inf(1)}
		data, _ := cbor.Marshal(values)
		req, _ := http.NewRequest("POST", "/decompose", bytes.NewReader(data))
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleDecompose).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var out []vectors.EncodeVector32
		assert.NoError(t, cbor.Unmarshal(rr.Body.Bytes(), &out))
		assert.Len(t, out, 2)
		assert.Equal(t, uint32(127), out[0].Expected.Exponent)
		assert.Equal(t, uint32(0), out[0].Expected.Mantissa)
		assert.True(t, out[1].Expected.IsInfinite)
	})

	t.Run("Decompose JSON with symbolic tokens", func(t *testing.T) {
		body := `["NaN", 1.5, "0x1p-149"]`
		req, _ := http.NewRequest("POST", "/decompose", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleDecompose).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var out []vectors.EncodeVector32
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.Len(t, out, 3)
		assert.True(t, out[0].Expected.IsNaN)
		assert.Equal(t, uint32(127), out[1].Expected.Exponent)
		assert.Equal(t, uint32(0x400000), out[1].Expected.Mantissa)
		assert.True(t, out[2].Expected.IsSubnormal)
		assert.Equal(t, uint32(1), out[2].Expected.Mantissa)
	})

	t.Run("Decompose rejects garbage", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/decompose", bytes.NewBufferString(`["sideways"]`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleDecompose).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Decompose wrong method", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/decompose", nil)
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleDecompose).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("Narrow", func(t *testing.T) {
		body := `[65504, 100000]`
		req, _ := http.NewRequest("POST", "/narrow", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleNarrow).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var out []vectors.Conversion
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.Len(t, out, 2)

		// Largest representable half stays finite
		assert.Equal(t, uint16(30), out[0].Half.Exponent)
		assert.Equal(t, uint16(1023), out[0].Half.Mantissa)
		assert.True(t, out[0].Half.IsNormal)

		// Past the half range the exponent saturates
		assert.True(t, out[1].Half.IsInfinite)
		assert.True(t, out[1].Single.IsNormal)
	})

	t.Run("Decompose Arrow stream", func(t *testing.T) {
		alloc := memory.NewGoAllocator()
		fb := array.NewFloat64Builder(alloc)
		defer fb.Release()
		fb.AppendValues([]float64{1.0, -2.5}, nil)
		arr := fb.NewFloat64Array()
		defer arr.Release()

		schema := arrow.NewSchema([]arrow.Field{
			{Name: "input", Type: arrow.PrimitiveTypes.Float64},
		}, nil)
		rec := array.NewRecordBatch(schema, []arrow.Array{arr}, 2)
		defer rec.Release()

		var buf bytes.Buffer
		w := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(alloc))
		assert.NoError(t, w.Write(rec))
		assert.NoError(t, w.Close())

		req, _ := http.NewRequest("POST", "/decompose/arrow", &buf)
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleDecomposeArrow).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		reader, err := ipc.NewReader(rr.Body, ipc.WithAllocator(alloc))
		assert.NoError(t, err)
		defer reader.Release()

		assert.True(t, reader.Next())
		got := reader.Record()
		assert.Equal(t, int64(2), got.NumRows())
		assert.True(t, got.Schema().Equal(vectors.SchemaFP32Encode))

		bits := got.Column(4).(*array.Uint32)
		assert.Equal(t, uint32(0x3F800000), bits.Value(0))
		assert.Equal(t, uint32(0xC0200000), bits.Value(1))

		class := got.Column(5).(*array.String)
		assert.Equal(t, "normal", class.Value(1))
	})

	t.Run("Vectors JSON cached", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/vectors?format=json", nil)
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleVectors).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

		var got vectors.Suite
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, suite.Len(), got.Len())
		assert.Equal(t, 1, srv.payloads.Size())

		// Second hit serves the cached payload
		rr2 := httptest.NewRecorder()
		http.HandlerFunc(srv.handleVectors).ServeHTTP(rr2, req)
		assert.Equal(t, rr.Body.String(), rr2.Body.String())
		assert.Equal(t, 1, srv.payloads.Size())
	})

	t.Run("Vectors Arrow bucket", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/vectors?format=arrow&bucket=fp16_encode", nil)
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleVectors).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		reader, err := ipc.NewReader(rr.Body)
		assert.NoError(t, err)
		defer reader.Release()

		assert.True(t, reader.Next())
		got := reader.Record()
		assert.Equal(t, int64(9), got.NumRows())
		assert.True(t, got.Schema().Equal(vectors.SchemaFP16Encode))
	})

	t.Run("Vectors unknown bucket", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/vectors?format=arrow&bucket=nope", nil)
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleVectors).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Vectors unknown format", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/vectors?format=xml", nil)
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleVectors).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Validate clean suite", func(t *testing.T) {
		data, err := cbor.Marshal(suite)
		assert.NoError(t, err)

		req, _ := http.NewRequest("POST", "/validate", bytes.NewReader(data))
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleValidate).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp validateResponse
		assert.NoError(t, cbor.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Ok)
		assert.Equal(t, suite.Len(), resp.Checked)
		assert.Equal(t, 0, resp.Failed)
		assert.Empty(t, resp.Problems)
	})

	t.Run("Validate drifted suite", func(t *testing.T) {
		drifted := vectors.Generate()
		drifted.FP32Encode[2].Expected.Mantissa = 999

		data, err := cbor.Marshal(drifted)
		assert.NoError(t, err)

		req, _ := http.NewRequest("POST", "/validate", bytes.NewReader(data))
		rr := httptest.NewRecorder()

		http.HandlerFunc(srv.handleValidate).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		var resp validateResponse
		assert.NoError(t, cbor.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Ok)
		assert.Equal(t, 1, resp.Failed)
		assert.Len(t, resp.Problems, 1)
		assert.Contains(t, resp.Problems[0], "fp32_encode[2]")
	})

	t.Run("Publish with Forwarding", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/publish", nil)
		rr := httptest.NewRecorder()

		// Expect Publish to be called
		pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

		http.HandlerFunc(srv.handlePublish).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		pub.AssertExpectations(t)
	})

	t.Run("Publish without Longbow", func(t *testing.T) {
		bare := NewServer(suite, nil, 0, 16)
		req, _ := http.NewRequest("POST", "/publish", nil)
		rr := httptest.NewRecorder()

		http.HandlerFunc(bare.handlePublish).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Health Check", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()

		srv.handleHealth(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "OK", rr.Body.String())
	})
}
