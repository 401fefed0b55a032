package client

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-caliper/internal/vectors"
)

// Putter is the slice of the Flight client a publisher needs.
type Putter interface {
	DoPut(ctx context.Context, datasetName string, record arrow.RecordBatch) error
}

// Publisher pushes a reference suite to a Longbow dataset family, one
// DoPut per bucket, with a circuit breaker in front of a flaky server.
type Publisher struct {
	putter  Putter
	breaker *CircuitBreaker
	builder *vectors.BatchBuilder
	dataset string
}

// NewPublisher creates a publisher writing under the given dataset
// prefix. Bucket names are appended: <dataset>_fp32_encode and so on.
func NewPublisher(putter Putter, dataset string) *Publisher {
	return &Publisher{
		putter:  putter,
		breaker: NewCircuitBreaker(3, 5*time.Second),
		builder: vectors.NewBatchBuilder(memory.DefaultAllocator),
		dataset: dataset,
	}
}

// Publish sends every bucket of the suite. It stops at the first
// failure so the breaker sees one verdict per attempt.
func (p *Publisher) Publish(ctx context.Context, s vectors.Suite) error {
	for _, bucket := range vectors.Buckets() {
		if !p.breaker.Allow() {
			return fmt.Errorf("publish %s: circuit %s", bucket, p.breaker.State())
		}
		rb, err := p.builder.Bucket(s, bucket)
		if err != nil {
			return err
		}
		err = p.putter.DoPut(ctx, p.dataset+"_"+bucket, rb)
		rb.Release()
		if err != nil {
			p.breaker.Failure()
			return fmt.Errorf("publish %s: %w", bucket, err)
		}
		p.breaker.Success()
	}
	return nil
}

// Breaker exposes the circuit breaker for state logging.
func (p *Publisher) Breaker() *CircuitBreaker {
	return p.breaker
}
