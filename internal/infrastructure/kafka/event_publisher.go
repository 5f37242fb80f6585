package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	pkgkafka "github.com/agilasoft/logistics-sub000/pkg/kafka"
	"github.com/agilasoft/logistics-sub000/pkg/logging"
	"github.com/agilasoft/logistics-sub000/pkg/metrics"
)

const eventSource = "wms-allocation-engine"

// EventPublisher routes domain events onto their Kafka topics wrapped in the
// shared event envelope.
type EventPublisher struct {
	producer *pkgkafka.Producer
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

func NewEventPublisher(producer *pkgkafka.Producer, m *metrics.Metrics, logger *logging.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		metrics:  m,
		logger:   logger.WithComponent("event-publisher"),
	}
}

// Publish wraps the event and sends it to the topic its type belongs to
func (p *EventPublisher) Publish(ctx context.Context, subject string, event domain.DomainEvent) error {
	envelope := &pkgkafka.EventEnvelope{
		ID:          uuid.New().String(),
		Type:        event.EventType(),
		Source:      eventSource,
		Subject:     subject,
		Time:        event.OccurredAt(),
		ContentType: "application/json",
		Data:        event,
	}

	topic := topicFor(event)
	start := time.Now()
	err := p.producer.PublishEvent(ctx, topic, envelope)
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.EventType(), err == nil, duration)
	}
	p.logger.KafkaPublish(ctx, topic, event.EventType(), err == nil, duration)
	return err
}

func topicFor(event domain.DomainEvent) string {
	switch event.(type) {
	case *domain.JobAllocatedEvent:
		return pkgkafka.Topics.AllocationEvents
	case *domain.MovementPostedEvent:
		return pkgkafka.Topics.LedgerEvents
	case *domain.CapacityAlertEvent:
		return pkgkafka.Topics.CapacityEvents
	default:
		return pkgkafka.Topics.AllocationEvents
	}
}

// Close flushes and closes the underlying producer
func (p *EventPublisher) Close() error {
	return p.producer.Close()
}
