package kafka_infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerCommitsAfterHandlerSucceeds(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}

	var mu sync.Mutex
	failures := map[int64]int{2: 2}
	var handled []int64
	handler := func(_ context.Context, msg kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if failures[msg.Offset] > 0 {
			failures[msg.Offset]--
			return errors.New("database unavailable")
		}
		handled = append(handled, msg.Offset)
		return nil
	}

	c := NewConsumerWithReader(reader, "transfers", "group", handler, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	mu.Lock()
	assert.Equal(t, []int64{1, 2, 3}, handled)
	mu.Unlock()

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestConsumerStopsWhileRetrying(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{{Offset: 7}}}
	handler := func(context.Context, kafka.Message) error { return errors.New("always failing") }

	c := NewConsumerWithReader(reader, "transfers", "group", handler, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Consume(ctx))
	assert.Empty(t, reader.commits())
}
