package client

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-caliper/internal/vectors"
)

type fakePutter struct {
	datasets []string
	rows     []int64
	err      error
}

func (f *fakePutter) DoPut(_ context.Context, datasetName string, record arrow.RecordBatch) error {
	if f.err != nil {
		return f.err
	}
	f.datasets = append(f.datasets, datasetName)
	f.rows = append(f.rows, record.NumRows())
	return nil
}

func TestPublisherPublishesAllBuckets(t *testing.T) {
	putter := &fakePutter{}
	pub := NewPublisher(putter, "caliper")

	err := pub.Publish(context.Background(), vectors.Generate())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"caliper_fp32_encode",
		"caliper_fp32_decode",
		"caliper_fp16_encode",
		"caliper_conversions",
	}, putter.datasets)
	assert.Equal(t, []int64{26, 15, 9, 14}, putter.rows)
	assert.Equal(t, StateClosed, pub.Breaker().State())
}

func TestPublisherTripsBreaker(t *testing.T) {
	putter := &fakePutter{err: errors.New("longbow unavailable")}
	pub := NewPublisher(putter, "caliper")
	suite := vectors.Generate()

	for i := 0; i < 3; i++ {
		err := pub.Publish(context.Background(), suite)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "publish fp32_encode")
	}
	assert.Equal(t, StateOpen, pub.Breaker().State())

	// The open circuit rejects the next attempt before dialing out.
	putter.err = nil
	err := pub.Publish(context.Background(), suite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Empty(t, putter.datasets)
}
