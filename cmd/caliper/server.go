package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/23skdu/longbow-caliper/internal/cache"
	"github.com/23skdu/longbow-caliper/internal/ieee754"
	"github.com/23skdu/longbow-caliper/internal/oracle"
	"github.com/23skdu/longbow-caliper/internal/vectors"
)

var (
	vectorsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_vectors_served_total",
		Help: "The total number of reference vectors served",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "caliper_request_duration_seconds",
		Help:    "Time spent serving decompose and narrow requests",
		Buckets: prometheus.DefBuckets,
	})

	validationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caliper_validations_failed_total",
		Help: "The number of submitted suites rejected by /validate",
	})

	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caliper_classifications_total",
		Help: "Values decomposed, by target format and class",
	}, []string{"format", "class"})
)

type PublisherInterface interface {
	Publish(ctx context.Context, s vectors.Suite) error
}

type Server struct {
	suite     vectors.Suite
	publisher PublisherInterface
	payloads  cache.PayloadCache
	builder   *vectors.BatchBuilder
	alloc     memory.Allocator
	tolerance float64
	sem       *semaphore.Weighted
}

func NewServer(suite vectors.Suite, pub PublisherInterface, tolerance float64, maxConcurrent int) *Server {
	alloc := memory.NewGoAllocator()
	return &Server{
		suite:     suite,
		publisher: pub,
		payloads:  cache.NewMapCache(),
		builder:   vectors.NewBatchBuilder(alloc),
		alloc:     alloc,
		tolerance: tolerance,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func startServer(addr string, suite vectors.Suite, pub PublisherInterface, tolerance float64, maxConcurrent int) {
	srv := NewServer(suite, pub, tolerance, maxConcurrent)

	// Gauge closes over the live cache, so it is registered here
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "caliper_payload_cache_entries",
			Help: "Encoded suite payloads currently cached",
		},
		func() float64 {
			return float64(srv.payloads.Size())
		},
	))

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/decompose", srv.handleDecompose)
	http.HandleFunc("/decompose/arrow", srv.handleDecomposeArrow)
	http.HandleFunc("/narrow", srv.handleNarrow)
	http.HandleFunc("/vectors", srv.handleVectors)
	http.HandleFunc("/validate", srv.handleValidate)
	http.HandleFunc("/publish", srv.handlePublish)

	http.HandleFunc("/health", srv.handleHealth)

	log.Info().Str("addr", addr).Int("vectors", suite.Len()).Msg("Starting Caliper Server")
	if pub != nil {
		log.Info().Msg("Publishing to Longbow at specified server address")
	}

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

var tracer = otel.Tracer("caliper-server")

// readValues decodes the request body into raw inputs. JSON bodies may
// mix numbers with symbolic or hex string tokens; CBOR bodies carry
// native floats, which already cover NaN and the infinities.
func readValues(r *http.Request) ([]float64, error) {
	if r.Header.Get("Content-Type") == "application/json" {
		var scalars []vectors.Scalar
		if err := json.NewDecoder(r.Body).Decode(&scalars); err != nil {
			return nil, err
		}
		values := make([]float64, len(scalars))
		for i, s := range scalars {
			values[i] = float64(s)
		}
		return values, nil
	}

	var values []float64
	if err := cbor.NewDecoder(r.Body).Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

// responseContentType mirrors the request encoding: JSON in, JSON out.
func responseContentType(r *http.Request) string {
	if r.Header.Get("Content-Type") == "application/json" {
		return "application/json"
	}
	return "application/cbor"
}

func writeResponse(w http.ResponseWriter, r *http.Request, payload any) {
	ct := responseContentType(r)
	w.Header().Set("Content-Type", ct)
	if ct == "application/json" {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
		return
	}
	if err := cbor.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode CBOR response")
	}
}

func (s *Server) handleDecompose(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleDecompose")
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	values, err := readValues(r)
	if err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("Bad Request (body decode): %v", err), http.StatusBadRequest)
		return
	}

	if len(values) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	span.SetAttributes(
		attribute.Int("value_count", len(values)),
	)

	// Admission Control
	weight := int64(len(values))
	if err := s.sem.Acquire(ctx, weight); err != nil {
		log.Error().Err(err).Msg("Failed to acquire semaphore")
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(weight)

	out := make([]vectors.EncodeVector32, len(values))
	for i, v := range values {
		f := ieee754.Decompose32(float32(v))
		out[i] = vectors.EncodeVector32{
			Input:    vectors.Scalar(v),
			Expected: vectors.NewComponents32(f),
		}
		classificationsTotal.WithLabelValues("fp32", f.Class().String()).Inc()
	}
	vectorsServed.Add(float64(len(out)))

	writeResponse(w, r, out)
}

func (s *Server) handleNarrow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleNarrow")
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	values, err := readValues(r)
	if err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("Bad Request (body decode): %v", err), http.StatusBadRequest)
		return
	}

	if len(values) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	span.SetAttributes(
		attribute.Int("value_count", len(values)),
	)

	weight := int64(len(values))
	if err := s.sem.Acquire(ctx, weight); err != nil {
		log.Error().Err(err).Msg("Failed to acquire semaphore")
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(weight)

	out := make([]vectors.Conversion, len(values))
	for i, v := range values {
		half := ieee754.Narrow16(float32(v))
		out[i] = vectors.Conversion{
			Input:  vectors.Scalar(v),
			Single: vectors.NewComponents32(ieee754.Decompose32(float32(v))),
			Half:   vectors.NewComponents16(half),
		}
		classificationsTotal.WithLabelValues("fp16", half.Class().String()).Inc()
	}
	vectorsServed.Add(float64(len(out)))

	writeResponse(w, r, out)
}

// handleDecomposeArrow accepts an Arrow IPC stream with an "input"
// column (float64 or float32) and answers with an fp32_encode batch
// for those inputs, also as an IPC stream.
func (s *Server) handleDecomposeArrow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleDecomposeArrow")
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reader, err := ipc.NewReader(r.Body, ipc.WithAllocator(s.alloc))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create IPC reader: %v", err), http.StatusBadRequest)
		return
	}
	defer reader.Release()

	var out []vectors.EncodeVector32

	for reader.Next() {
		rec := reader.Record()
		if rec.NumCols() == 0 {
			continue
		}

		col := rec.Column(0)
		indices := rec.Schema().FieldIndices("input")
		if len(indices) > 0 {
			col = rec.Column(indices[0])
		}

		var values []float64
		switch arr := col.(type) {
		case *array.Float64:
			values = make([]float64, arr.Len())
			for i := 0; i < arr.Len(); i++ {
				values[i] = arr.Value(i)
			}
		case *array.Float32:
			values = make([]float64, arr.Len())
			for i := 0; i < arr.Len(); i++ {
				values[i] = float64(arr.Value(i))
			}
		default:
			log.Warn().Msg("Input column is not Float64/Float32 array, skipping batch")
			continue
		}

		weight := int64(len(values))
		if err := s.sem.Acquire(ctx, weight); err != nil {
			log.Error().Err(err).Msg("Failed to acquire semaphore for arrow batch")
			break
		}
		for _, v := range values {
			f := ieee754.Decompose32(float32(v))
			out = append(out, vectors.EncodeVector32{
				Input:    vectors.Scalar(v),
				Expected: vectors.NewComponents32(f),
			})
			classificationsTotal.WithLabelValues("fp32", f.Class().String()).Inc()
		}
		s.sem.Release(weight)
	}

	if reader.Err() != nil {
		log.Error().Err(reader.Err()).Msg("Error reading Arrow stream")
		http.Error(w, "Stream error", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.Int("value_count", len(out)),
	)
	vectorsServed.Add(float64(len(out)))

	rec := s.builder.FP32Encode(out)
	defer rec.Release()

	w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
	if err := writeArrowStream(w, rec); err != nil {
		log.Error().Err(err).Msg("Failed to write arrow response")
	}
}

// handleVectors serves the canonical suite. JSON and CBOR payloads are
// encoded once and cached; arrow streams carry one bucket each.
func (s *Server) handleVectors(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "handleVectors")
	defer span.End()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	span.SetAttributes(attribute.String("format", format))

	switch format {
	case "json":
		payload, err := s.payloads.Fill("json", func() ([]byte, error) {
			return json.Marshal(s.suite)
		})
		if err != nil {
			http.Error(w, "Encoding failed", http.StatusInternalServerError)
			return
		}
		vectorsServed.Add(float64(s.suite.Len()))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)

	case "cbor":
		payload, err := s.payloads.Fill("cbor", func() ([]byte, error) {
			return cbor.Marshal(s.suite)
		})
		if err != nil {
			http.Error(w, "Encoding failed", http.StatusInternalServerError)
			return
		}
		vectorsServed.Add(float64(s.suite.Len()))
		w.Header().Set("Content-Type", "application/cbor")
		_, _ = w.Write(payload)

	case "arrow":
		bucket := r.URL.Query().Get("bucket")
		if bucket == "" {
			bucket = vectors.BucketFP32Encode
		}
		payload, err := s.payloads.Fill("arrow_"+bucket, func() ([]byte, error) {
			rec, err := s.builder.Bucket(s.suite, bucket)
			if err != nil {
				return nil, err
			}
			defer rec.Release()
			var buf bytes.Buffer
			if err := writeArrowStream(&buf, rec); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("Bad Request: %v", err), http.StatusBadRequest)
			return
		}
		n, _ := s.suite.BucketLen(bucket)
		vectorsServed.Add(float64(n))
		w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
		_, _ = w.Write(payload)

	default:
		http.Error(w, fmt.Sprintf("Unknown format %q", format), http.StatusBadRequest)
	}
}

// validateResponse is the /validate reply body.
type validateResponse struct {
	Ok       bool                     `json:"ok"`
	Checked  int                      `json:"checked"`
	Failed   int                      `json:"failed"`
	Buckets  map[string]oracle.Counts `json:"buckets"`
	Problems []string                 `json:"problems,omitempty"`
}

// handleValidate recomputes every vector of a submitted suite. A clean
// suite gets 200, a drifted one 422 plus the list of mismatches.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleValidate")
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var submitted vectors.Suite
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
			span.RecordError(err)
			http.Error(w, fmt.Sprintf("Bad Request (body decode): %v", err), http.StatusBadRequest)
			return
		}
	} else {
		if err := cbor.NewDecoder(r.Body).Decode(&submitted); err != nil {
			span.RecordError(err)
			http.Error(w, fmt.Sprintf("Bad Request (body decode): %v", err), http.StatusBadRequest)
			return
		}
	}

	weight := int64(submitted.Len())
	if weight == 0 {
		weight = 1
	}
	if err := s.sem.Acquire(ctx, weight); err != nil {
		log.Error().Err(err).Msg("Failed to acquire semaphore")
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(weight)

	report, err := oracle.Verify(submitted, oracle.Options{Tolerance: s.tolerance})
	span.SetAttributes(
		attribute.Int("checked", report.Checked()),
		attribute.Int("failed", report.Failed()),
	)

	resp := validateResponse{
		Ok:      err == nil,
		Checked: report.Checked(),
		Failed:  report.Failed(),
		Buckets: report.Buckets,
	}

	if err != nil {
		validationsFailed.Inc()
		resp.Problems = splitProblems(err)
		log.Warn().Int("failed", report.Failed()).Msg("Submitted suite failed validation")
		w.Header().Set("Content-Type", responseContentType(r))
		w.WriteHeader(http.StatusUnprocessableEntity)
	}

	writeResponse(w, r, resp)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handlePublish")
	defer span.End()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.publisher == nil {
		http.Error(w, "No Longbow server configured", http.StatusConflict)
		return
	}

	if err := s.publisher.Publish(ctx, s.suite); err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("Publish failed")
		http.Error(w, fmt.Sprintf("Publish failed: %v", err), http.StatusBadGateway)
		return
	}

	log.Info().Int("vectors", s.suite.Len()).Msg("Published reference suite")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// splitProblems flattens an aggregated validation error into one
// message per failing vector.
func splitProblems(err error) []string {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		problems := make([]string, len(merr.Errors))
		for i, e := range merr.Errors {
			problems[i] = e.Error()
		}
		return problems
	}
	return []string{err.Error()}
}
