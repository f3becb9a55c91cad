package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"figmist-store/internal/models"
	"figmist-store/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing catalog events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishProductChanged publishes a product created, updated or deleted event.
// Events for one product share a key so they stay ordered on a partition.
func (ep *EventPublisher) PublishProductChanged(ctx context.Context, event *models.ProductChangedEvent) error {
	key := fmt.Sprintf("product-%s", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onProductChanged func(context.Context, *models.ProductChangedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("broker")}
}

// OnProductChanged registers a handler for product change events
func (eh *EventHandler) OnProductChanged(handler func(context.Context, *models.ProductChangedEvent) error) {
	eh.onProductChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeProductCreated, models.EventTypeProductUpdated, models.EventTypeProductDeleted:
		if eh.onProductChanged != nil {
			var event models.ProductChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onProductChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
