package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var kafkaPublishErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ledger_kafka_publish_errors_total",
		Help: "Total number of Kafka publish errors",
	},
)

type envelope struct {
	EventID    string    `json:"event_id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// KafkaPublisher writes ledger events to a Kafka topic as JSON messages,
// keyed by event name. Publishing is asynchronous and best-effort.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

var _ Emitter = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Emit(_ context.Context, event string, payload any) {
	data, err := json.Marshal(envelope{
		EventID:    uuid.NewString(),
		Event:      event,
		OccurredAt: time.Now(),
		Payload:    payload,
	})
	if err != nil {
		p.logger.Error("failed to marshal ledger event",
			zap.String("event", event),
			zap.Error(err))
		kafkaPublishErrors.Inc()
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(event),
			Value: data,
			Time:  time.Now(),
		}); err != nil {
			p.logger.Error("kafka publish failed",
				zap.String("event", event),
				zap.Error(err))
			kafkaPublishErrors.Inc()
		}
	}()
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
