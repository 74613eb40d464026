package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/zaqqye/proctor_backend/internal/ws"
)

// Publisher ships violation events to a Kafka topic for downstream
// analytics. Entirely best-effort: publishing failures are traced and
// dropped, never surfaced to the exam flow.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher returns nil when no broker is configured; a nil Publisher
// is safe to use and publishes nothing.
func NewPublisher(broker, topic string) *Publisher {
	if broker == "" || topic == "" {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 100 * time.Millisecond,
			Async:        true,
		},
	}
}

// PublishViolation enqueues one violation event keyed by exam so a
// consumer sees each exam's events in order.
func (p *Publisher) PublishViolation(ctx context.Context, payload ws.ViolationPayload) {
	if p == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("telemetry: marshal violation: %v", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payload.ExamID),
		Value: data,
	})
	if err != nil {
		log.Printf("telemetry: publish violation: %v", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
