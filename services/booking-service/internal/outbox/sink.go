package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/md-rashed-zaman/apptchat/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptchat/libs/otel"
	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
)

// Sink delivers a batch of outbox records. A batch is marked published only
// when Publish returns nil, so sinks must tolerate redelivery.
type Sink interface {
	Publish(ctx context.Context, records []Record) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes one message per record to the topic named by its event type.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSink) Publish(ctx context.Context, records []Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		msgs = append(msgs, kafkax.NewMessage(msgCtx, r.EventType, r.AggregateID, r.Payload, kafkax.EventMeta{
			EventID:   r.EventID,
			EventType: r.EventType,
		}))
	}
	return s.writer.WriteMessages(ctx, msgs...)
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

type natsConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSSink publishes each record on the subject named by its event type.
type NATSSink struct {
	conn natsConn
}

func NewNATSSink(url string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("booking-service-outbox"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSSink{conn: conn}, nil
}

func (s *NATSSink) Publish(ctx context.Context, records []Record) error {
	for _, r := range records {
		msg := nats.NewMsg(r.EventType)
		msg.Data = r.Payload
		msg.Header.Set(nats.MsgIdHdr, r.EventID)
		msg.Header.Set(kafkax.HeaderEventType, r.EventType)
		if r.Traceparent != "" {
			msg.Header.Set("traceparent", r.Traceparent)
		}
		if err := s.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish %s: %w", r.EventID, err)
		}
	}
	return s.conn.FlushWithContext(ctx)
}

func (s *NATSSink) Close() error {
	s.conn.Close()
	return nil
}

// LogSink only logs; it keeps the outbox draining in environments without a broker.
type LogSink struct {
	Logf func(msg string, args ...any)
}

func (s LogSink) Publish(_ context.Context, records []Record) error {
	for _, r := range records {
		if s.Logf != nil {
			s.Logf("outbox event", "event_id", r.EventID, "event_type", r.EventType, "payload", json.RawMessage(r.Payload))
		}
	}
	return nil
}

func (LogSink) Close() error { return nil }
