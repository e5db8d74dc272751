package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/apptchat/libs/kafkax"
)

type chanReader struct {
	msgs   chan kafka.Message
	closed bool
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *chanReader) Close() error {
	r.closed = true
	return nil
}

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memInbox) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	return nil
}

func msg(id string) kafka.Message {
	return kafka.Message{Topic: "t", Headers: []kafka.Header{{Key: kafkax.HeaderEventID, Value: []byte(id)}}}
}

func TestConsumerSkipsDuplicatesAndRetriesFailures(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 8)}
	inbox := &memInbox{seen: map[string]bool{}}
	var (
		mu      sync.Mutex
		handled []string
		failed  bool
	)
	c := newConsumer(reader, slog.New(slog.NewTextHandler(io.Discard, nil)), inbox, func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		id := kafkax.ExtractEventMeta(m).EventID
		handled = append(handled, id)
		if id == "b" && !failed {
			failed = true
			return errors.New("transient")
		}
		return nil
	})

	for _, id := range []string{"a", "a", "b", "b", "b"} {
		reader.msgs <- msg(id)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 3
	}, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"a", "b", "b"}, handled)
	assert.True(t, reader.closed)
}
