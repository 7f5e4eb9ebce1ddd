package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing checkout events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCheckoutEvent publishes a checkout event keyed by order
func (ep *EventPublisher) PublishCheckoutEvent(ctx context.Context, event *models.CheckoutEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// NopPublisher drops events; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishCheckoutEvent(context.Context, *models.CheckoutEvent) error {
	return nil
}

// NewCheckoutEvent stamps a new event with an id and time
func NewCheckoutEvent(eventType string, orderID int64) *models.CheckoutEvent {
	return &models.CheckoutEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now().UTC(),
		},
		OrderID: orderID,
	}
}

// ErrMalformedMessage marks messages that can never be handled
var ErrMalformedMessage = errors.New("malformed message")

// EventHandler routes incoming messages to registered handlers
type EventHandler struct {
	onCheckoutEvent func(context.Context, *models.CheckoutEvent) error
	logger          *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnCheckoutEvent registers a handler for every checkout event type
func (eh *EventHandler) OnCheckoutEvent(handler func(context.Context, *models.CheckoutEvent) error) {
	eh.onCheckoutEvent = handler
}

// HandleMessage routes messages to appropriate handlers. Unknown event types
// are acknowledged and skipped.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: base event: %v", ErrMalformedMessage, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	if !models.IsCheckoutEvent(baseEvent.EventType) {
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
		return nil
	}
	if eh.onCheckoutEvent == nil {
		return nil
	}

	var event models.CheckoutEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("%w: checkout event: %v", ErrMalformedMessage, err)
	}
	return eh.onCheckoutEvent(ctx, &event)
}
