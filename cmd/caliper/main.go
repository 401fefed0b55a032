package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"

	"github.com/23skdu/longbow-caliper/internal/client"
	"github.com/23skdu/longbow-caliper/internal/oracle"
	"github.com/23skdu/longbow-caliper/internal/vectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"encoding/json"
	"io"
)

var (
	listenAddr    = flag.String("listen", "", "Address to listen on for HTTP server (e.g. :8080)")
	flightAddr    = flag.String("flight", "", "Address to listen on for Flight server (e.g. :9090)")
	serverAddr    = flag.String("server", "", "Longbow server address to publish the suite to (e.g. localhost:3000)")
	datasetName   = flag.String("dataset", "caliper_reference", "Dataset prefix on the Longbow server")
	outputFormat  = flag.String("format", "json", "Output format: json, cbor or arrow")
	arrowBucket   = flag.String("bucket", vectors.BucketFP32Encode, "Bucket to emit when -format=arrow (one schema per stream)")
	checksPath    = flag.String("checks", "", "YAML file of extra probe values to fold into the suite")
	validatePath  = flag.String("validate", "", "Verify a previously emitted suite file (.json or .cbor) and exit")
	tolerance     = flag.Float64("tolerance", 0, "Tolerance for decode value checks (0 = bit exact)")
	compactJSON   = flag.Bool("compact", false, "Emit compact JSON instead of indented")
	maxConcurrent = flag.Int("max-concurrent", 16384, "Maximum number of concurrent values to process")
	cpuProfile    = flag.String("cpuprofile", "", "Write cpu profile to file")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
)

func main() {
	// Initialize logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	var extras []vectors.Check
	if *checksPath != "" {
		var err error
		extras, err = vectors.LoadChecks(*checksPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load extra checks")
		}
		log.Info().Int("count", len(extras)).Str("path", *checksPath).Msg("Loaded extra checks")
	}

	suite := vectors.GenerateWith(extras)

	// Validate Mode
	if *validatePath != "" {
		os.Exit(runValidate(*validatePath, suite, *tolerance))
	}

	// Server Mode
	if *listenAddr != "" {
		var pub PublisherInterface
		if *serverAddr != "" {
			fc, err := client.NewFlightClient(*serverAddr)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to create flight client")
			}
			log.Info().Str("addr", *serverAddr).Msg("Connected to Longbow Flight server")
			pub = client.NewPublisher(fc, *datasetName)
		}

		go startServer(*listenAddr, suite, pub, *tolerance, *maxConcurrent)
		if *flightAddr == "" {
			select {}
		}
	}

	if *flightAddr != "" {
		StartFlightServer(*flightAddr, suite)
		return
	}

	// One-shot mode: emit the suite, optionally publish it, then exit.
	if *serverAddr != "" {
		flightClient, err := client.NewFlightClient(*serverAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Longbow")
		}
		defer func() {
			if err := flightClient.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close flight client")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		pub := client.NewPublisher(flightClient, *datasetName)
		if err := pub.Publish(ctx, suite); err != nil {
			log.Fatal().Err(err).Msg("Flight publish failed")
		}
		log.Info().
			Int("vectors", suite.Len()).
			Str("dataset", *datasetName).
			Msg("Published reference suite to Longbow")
		return
	}

	if err := emitSuite(os.Stdout, suite, *outputFormat, *arrowBucket, !*compactJSON); err != nil {
		log.Fatal().Err(err).Str("format", *outputFormat).Msg("Failed to emit suite")
	}
}

// emitSuite writes the suite to w in the requested wire format. Arrow
// streams hold a single schema, so that path emits one bucket.
func emitSuite(w io.Writer, s vectors.Suite, format, bucket string, indent bool) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		if indent {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(s)
	case "cbor":
		return cbor.NewEncoder(w).Encode(s)
	case "arrow":
		builder := vectors.NewBatchBuilder(memory.NewGoAllocator())
		rec, err := builder.Bucket(s, bucket)
		if err != nil {
			return err
		}
		defer rec.Release()
		return writeArrowStream(w, rec)
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeArrowStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// loadSuiteFile reads a previously emitted suite, sniffing the format
// from the file extension.
func loadSuiteFile(path string) (vectors.Suite, error) {
	var s vectors.Suite
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read suite: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		if err := cbor.Unmarshal(raw, &s); err != nil {
			return s, fmt.Errorf("decode suite %s: %w", path, err)
		}
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode suite %s: %w", path, err)
	}
	return s, nil
}

// runValidate checks a stored suite two ways: every vector is recomputed
// from its inputs, and the result is diffed against the canonical suite.
// Returns the process exit code.
func runValidate(path string, canonical vectors.Suite, tol float64) int {
	stored, err := loadSuiteFile(path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load suite")
		return 1
	}

	opts := oracle.Options{Tolerance: tol}

	report, verr := oracle.Verify(stored, opts)
	logReport("verify", report)

	// Only diff against the canonical suite when the stored one has the
	// canonical shape; suites generated with extra checks are still
	// verifiable above.
	if stored.Len() == canonical.Len() {
		compareReport, cerr := oracle.Compare(stored, canonical, opts)
		logReport("compare", compareReport)
		if cerr != nil {
			log.Error().Err(cerr).Msg("Stored suite drifted from canonical")
			return 1
		}
	}

	if verr != nil {
		log.Error().Err(verr).Msg("Suite failed verification")
		return 1
	}

	log.Info().Int("vectors", report.Checked()).Str("path", path).Msg("Suite verified")
	return 0
}

func logReport(stage string, report oracle.Report) {
	for _, bucket := range vectors.Buckets() {
		c := report.Buckets[bucket]
		if c.Checked == 0 {
			continue
		}
		log.Info().
			Str("stage", stage).
			Str("bucket", bucket).
			Int("checked", c.Checked).
			Int("failed", c.Failed).
			Msg("Bucket checked")
	}
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("caliper"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
