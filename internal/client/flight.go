package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FlightClient ships reference batches to a Longbow server over Apache
// Flight. A put counts as delivered only after the server has drained
// the stream and closed its side.
type FlightClient struct {
	client flight.Client
	conn   *grpc.ClientConn
}

// NewFlightClient connects to the Longbow Flight endpoint at addr.
func NewFlightClient(addr string) (*FlightClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &FlightClient{
		client: flight.NewClientFromConn(conn, nil),
		conn:   conn,
	}, nil
}

// DoPut streams one record batch into the named dataset. The flight
// descriptor rides on the first message of the stream.
func (c *FlightClient) DoPut(ctx context.Context, datasetName string, record arrow.RecordBatch) error {
	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("%s: open put stream: %w", datasetName, err)
	}

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(record.Schema()))
	writer.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{datasetName},
	})

	if err := writer.Write(record); err != nil {
		return fmt.Errorf("%s: write batch: %w", datasetName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%s: close writer: %w", datasetName, err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("%s: close stream: %w", datasetName, err)
	}

	// Drain acknowledgments until the server ends the stream.
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%s: server rejected put: %w", datasetName, err)
		}
	}
}

// Close tears down the underlying connection.
func (c *FlightClient) Close() error {
	return c.conn.Close()
}
