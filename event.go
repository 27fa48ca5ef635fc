package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/orders/models"
)

const (
	// subjectPrefix namespaces every event subject owned by this service.
	subjectPrefix = "order.service.event."

	// queueGroup makes each subscription a work queue: one delivery per
	// consumer group, never per instance.
	queueGroup = "order-service"

	// subjectDeadLetter receives poison messages rejected without requeue.
	subjectDeadLetter = "order.service.dlq"
)

func subjectFor(eventType models.EventType) string {
	return subjectPrefix + string(eventType)
}

type EventHandler func(context.Context, *models.Envelope) error

// EventPublisher is the outbound side of the event router.
type EventPublisher interface {
	Publish(ctx context.Context, eventType models.EventType, payload any) error
	PublishDeadLetter(ctx context.Context, event *models.Envelope, cause error) error
}

// EventManager routes events: it holds the per-type handler registry, owns the
// per-event-type queue subscriptions, and publishes outbound events.
type EventManager struct {
	natsConn *nats.Conn
	handlers map[models.EventType]EventHandler
	logger   *zap.Logger
}

func NewEventManager(natsConn *nats.Conn, logger *zap.Logger) *EventManager {
	return &EventManager{
		natsConn: natsConn,
		handlers: make(map[models.EventType]EventHandler),
		logger:   logger,
	}
}

func (em *EventManager) RegisterHandler(eventType models.EventType, handler EventHandler) {
	em.handlers[eventType] = handler
}

func (em *EventManager) GetHandler(eventType models.EventType) (EventHandler, bool) {
	handler, exists := em.handlers[eventType]
	return handler, exists
}

// SubscribeToEvents opens one queue subscription per registered event type and
// feeds decoded envelopes to the worker pool. The intake path only schedules
// work, it never blocks on handlers.
func (em *EventManager) SubscribeToEvents(wp *WorkerPool) error {
	for eventType := range em.handlers {
		_, err := em.natsConn.QueueSubscribe(subjectFor(eventType), queueGroup, func(msg *nats.Msg) {
			var envelope models.Envelope
			if err := json.Unmarshal(msg.Data, &envelope); err != nil {
				em.logger.Error("Failed to unmarshal event envelope",
					zap.Error(err), zap.String("subject", msg.Subject))
				return
			}

			wp.Submit(context.Background(), &envelope)
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Publish wraps the payload in a fresh envelope and sends it on the subject of
// its type. Lifecycle chain events come back to this same service.
func (em *EventManager) Publish(_ context.Context, eventType models.EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	envelope := models.Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if err := em.natsConn.Publish(subjectFor(eventType), raw); err != nil {
		em.logger.Error("Failed to publish event",
			zap.Error(err), zap.String("event_type", string(eventType)))
		return err
	}

	return nil
}

// deadLetter carries a rejected envelope and the reason it was rejected.
type deadLetter struct {
	Envelope *models.Envelope `json:"envelope"`
	Error    string           `json:"error"`
	FailedAt time.Time        `json:"failed_at"`
}

// PublishDeadLetter parks a poison message for manual intervention instead of
// requeueing it into an infinite redelivery loop.
func (em *EventManager) PublishDeadLetter(_ context.Context, event *models.Envelope, cause error) error {
	raw, err := json.Marshal(deadLetter{
		Envelope: event,
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := em.natsConn.Publish(subjectDeadLetter, raw); err != nil {
		em.logger.Error("Failed to publish dead letter",
			zap.Error(err), zap.String("event_id", event.ID))
		return err
	}

	em.logger.Warn("Event moved to dead letter subject",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("cause", cause.Error()))

	return nil
}
