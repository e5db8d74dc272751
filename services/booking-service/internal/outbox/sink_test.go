package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/md-rashed-zaman/apptchat/libs/kafkax"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSinkWritesOneMessagePerRecord(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w}

	err := sink.Publish(context.Background(), []Record{
		{ID: 1, EventID: "e1", AggregateID: "a1", EventType: AppointmentCreated, Payload: []byte(`{"x":1}`)},
		{ID: 2, EventID: "e2", AggregateID: "a2", EventType: AppointmentCancelled, Payload: []byte(`{}`)},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	first := w.msgs[0]
	require.Equal(t, AppointmentCreated, first.Topic)
	require.Equal(t, "a1", string(first.Key))
	meta := kafkax.ExtractEventMeta(first)
	require.Equal(t, "e1", meta.EventID)
	require.Equal(t, AppointmentCreated, meta.EventType)

	require.NoError(t, sink.Close())
	require.True(t, w.closed)
}

func TestKafkaSinkPropagatesWriteError(t *testing.T) {
	sink := &KafkaSink{writer: &fakeWriter{err: errors.New("broker down")}}
	err := sink.Publish(context.Background(), []Record{{EventID: "e1", EventType: AppointmentCreated}})
	require.ErrorContains(t, err, "broker down")
}

type fakeNATS struct {
	msgs    []*nats.Msg
	flushed bool
}

func (c *fakeNATS) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeNATS) FlushWithContext(context.Context) error {
	c.flushed = true
	return nil
}

func (c *fakeNATS) Close() {}

func TestNATSSinkSetsDedupHeader(t *testing.T) {
	conn := &fakeNATS{}
	sink := &NATSSink{conn: conn}

	err := sink.Publish(context.Background(), []Record{
		{EventID: "e1", EventType: AppointmentRescheduled, Payload: []byte(`{}`), Traceparent: "00-abc-def-01"},
	})
	require.NoError(t, err)
	require.True(t, conn.flushed)
	require.Len(t, conn.msgs, 1)
	require.Equal(t, AppointmentRescheduled, conn.msgs[0].Subject)
	require.Equal(t, "e1", conn.msgs[0].Header.Get(nats.MsgIdHdr))
	require.Equal(t, "00-abc-def-01", conn.msgs[0].Header.Get("traceparent"))
}

func TestLogSinkNeverFails(t *testing.T) {
	var calls int
	sink := LogSink{Logf: func(string, ...any) { calls++ }}
	require.NoError(t, sink.Publish(context.Background(), []Record{{EventID: "e1"}, {EventID: "e2"}}))
	require.Equal(t, 2, calls)
}
