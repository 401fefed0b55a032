package main

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-caliper/internal/vectors"
)

type CaliperFlightServer struct {
	flight.BaseFlightServer
	suite   vectors.Suite
	builder *vectors.BatchBuilder
	alloc   memory.Allocator
}

func NewCaliperFlightServer(suite vectors.Suite) *CaliperFlightServer {
	alloc := memory.NewGoAllocator()
	return &CaliperFlightServer{
		suite:   suite,
		builder: vectors.NewBatchBuilder(alloc),
		alloc:   alloc,
	}
}

// DoGet streams one bucket of the reference suite. The ticket carries
// the bucket name.
func (s *CaliperFlightServer) DoGet(tkt *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	bucket := string(tkt.GetTicket())

	rec, err := s.builder.Bucket(s.suite, bucket)
	if err != nil {
		return err
	}
	defer rec.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	defer writer.Close()

	if err := writer.Write(rec); err != nil {
		return err
	}

	log.Info().Str("bucket", bucket).Int64("rows", rec.NumRows()).Msg("DoGet served bucket")
	return nil
}

// GetFlightInfo describes a bucket named by a PATH descriptor.
func (s *CaliperFlightServer) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	if desc.Type != flight.DescriptorPATH || len(desc.Path) == 0 {
		return nil, fmt.Errorf("expected a PATH descriptor naming a bucket")
	}

	bucket := desc.Path[0]
	schema, err := vectors.BucketSchema(bucket)
	if err != nil {
		return nil, err
	}
	rows, err := s.suite.BucketLen(bucket)
	if err != nil {
		return nil, err
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(schema, s.alloc),
		FlightDescriptor: desc,
		Endpoint: []*flight.FlightEndpoint{{
			Ticket: &flight.Ticket{Ticket: []byte(bucket)},
		}},
		TotalRecords: int64(rows),
		TotalBytes:   -1,
	}, nil
}

// The reference suite is immutable once generated, so writes are refused.
func (s *CaliperFlightServer) DoPut(stream flight.FlightService_DoPutServer) error {
	return fmt.Errorf("DoPut not supported: reference vectors are read-only")
}

func (s *CaliperFlightServer) DoExchange(stream flight.FlightService_DoExchangeServer) error {
	return fmt.Errorf("DoExchange not implemented")
}

func StartFlightServer(addr string, suite vectors.Suite) {
	// Create the generic Flight Server which manages the GRPC lifecycle
	server := flight.NewFlightServer()

	// Register our custom service implementation
	server.RegisterFlightService(NewCaliperFlightServer(suite))

	// Init handles the listener creation internally
	if err := server.Init(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to init Flight server")
	}

	log.Info().Str("addr", addr).Int("vectors", suite.Len()).Msg("Starting Caliper Flight Server")
	if err := server.Serve(); err != nil {
		log.Fatal().Err(err).Msg("Flight server failed")
	}
}
