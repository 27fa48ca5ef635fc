package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gofalre.io/orders/errs"
	"gofalre.io/orders/event"
	"gofalre.io/orders/models"
	"gofalre.io/orders/models/enum"
	"gofalre.io/orders/order"
)

// Service drives the order lifecycle. Creation and forward transitions are
// event-driven; queries and cancellation are synchronous request/response.
type Service interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit, offset uint64) ([]*models.Order, error)
	ListAllOrders(ctx context.Context, limit, offset uint64) ([]*models.Order, error)
	CancelOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*models.Order, error)

	ProcessEvent(ctx context.Context, event *models.Envelope) error
	AdvanceStage(ctx context.Context, task StageTask) error

	Start(ctx context.Context) error
	Shutdown()
}

type service struct {
	order order.Repository
	event event.Repository

	eventManager *EventManager
	publisher    EventPublisher
	scheduler    StageScheduler
	workerPool   *WorkerPool
	stageRunner  *RedisStageScheduler

	stageDelayMin time.Duration
	stageDelayMax time.Duration

	logger *zap.Logger
}

func NewService(
	orderRepo order.Repository, eventRepo event.Repository,
	natsConn *nats.Conn, redisClient *redis.Client,
	cfg Config,
	logger *zap.Logger) Service {
	s := &service{
		order:         orderRepo,
		event:         eventRepo,
		stageDelayMin: cfg.StageDelayMin,
		stageDelayMax: cfg.StageDelayMax,
		logger:        logger,
	}
	s.eventManager = NewEventManager(natsConn, logger)
	s.publisher = s.eventManager
	s.stageRunner = NewRedisStageScheduler(redisClient, cfg.SchedulerKey, cfg.SchedulerPollInterval, s, logger)
	s.scheduler = s.stageRunner
	s.workerPool = NewWorkerPool(cfg.Workers, s, logger)
	s.registerEventHandlers()

	return s
}

// Start subscribes to the event subjects and launches the stage scheduler.
// The scheduler's first poll recovers stage tasks left over from a previous run.
func (s *service) Start(ctx context.Context) error {
	if err := s.eventManager.SubscribeToEvents(s.workerPool); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	go s.stageRunner.Run(ctx)

	return nil
}

func (s *service) Shutdown() {
	s.workerPool.Shutdown()
}

func (s *service) registerEventHandlers() {
	eventHandlers := map[models.EventType]EventHandler{
		// Order creation from the cart service's checkout.
		models.EventTypeCheckoutCompleted: s.handleCheckoutCompleted,

		// Self-addressed lifecycle chain.
		models.EventTypeOrderCreated:   s.handleOrderCreated,
		models.EventTypeOrderProcessed: s.handleOrderProcessed,
		models.EventTypeOrderShipped:   s.handleOrderShipped,

		// Compensation from the inventory service.
		models.EventTypeStockUpdateFailed: s.handleStockUpdateFailed}

	for eventType, handler := range eventHandlers {
		s.eventManager.RegisterHandler(eventType, handler)
	}
}

// ProcessEvent dispatches one inbound envelope. Envelopes already seen are
// skipped, so replaying a queue is harmless.
func (s *service) ProcessEvent(ctx context.Context, envelope *models.Envelope) error {
	if _, err := s.event.GetByID(ctx, envelope.ID); err == nil {
		s.logger.Info("Event already processed", zap.String("event_id", envelope.ID))
		return nil
	}

	handler, exists := s.eventManager.GetHandler(envelope.Type)
	if !exists {
		return fmt.Errorf("no handler registered for event type: %s", envelope.Type)
	}

	if err := s.event.Create(ctx, &models.ProcessedEvent{
		ID:        envelope.ID,
		Type:      envelope.Type,
		Processed: false,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}); err != nil {
		s.logger.Error("Failed to record event", zap.Error(err))
		return err
	}

	if err := handler(ctx, envelope); err != nil {
		s.logger.Error("Failed to handle event",
			zap.String("event_id", envelope.ID),
			zap.String("event_type", string(envelope.Type)),
			zap.Error(err),
		)

		if envelope.Type == models.EventTypeCheckoutCompleted {
			// Poison checkout messages are parked, not requeued, to avoid an
			// infinite redelivery loop. Someone has to look at them.
			if dlqErr := s.publisher.PublishDeadLetter(ctx, envelope, err); dlqErr != nil {
				s.logger.Error("Failed to dead-letter checkout event", zap.Error(dlqErr))
			}
		}
		return err
	}

	if err := s.event.MarkAsProcessed(ctx, envelope.ID); err != nil {
		s.logger.Warn("Failed to mark event as processed", zap.Error(err), zap.String("event_id", envelope.ID))
	}

	return nil
}

// handleCheckoutCompleted creates a PENDING order and kicks off both the stock
// reservation and the lifecycle chain.
func (s *service) handleCheckoutCompleted(ctx context.Context, envelope *models.Envelope) error {
	var payload models.CheckoutCompletedEvent
	if err := decodePayload(envelope, &payload); err != nil {
		return err
	}

	s.logger.Info("Handling checkout completed event",
		zap.String("cart_id", payload.CartID),
		zap.String("user_id", payload.UserID),
		zap.Int("items", len(payload.Items)))

	now := time.Now()
	newOrder := &models.Order{
		ID:            uuid.NewString(),
		UserID:        payload.UserID,
		Status:        enum.OrderStatusPending,
		PaymentMethod: enum.PaymentMethod(payload.PaymentMethod),
		Items:         checkoutItemsToOrderItems(payload.Items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := newOrder.Validate(); err != nil {
		return fmt.Errorf("invalid checkout payload: %w", err)
	}

	if err := s.order.Create(ctx, newOrder); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", newOrder.ID), zap.String("user_id", newOrder.UserID))

	if err := s.publisher.Publish(ctx, models.EventTypeStockReservationRequested, models.StockReservationRequestedEvent{
		CartID:            payload.CartID,
		UserID:            payload.UserID,
		OrderID:           newOrder.ID,
		ProductQuantities: newOrder.ProductQuantities(),
	}); err != nil {
		return fmt.Errorf("failed to publish stock reservation request: %w", err)
	}

	if err := s.publisher.Publish(ctx, models.EventTypeOrderCreated, models.OrderCreatedEvent{
		OrderID: newOrder.ID,
		UserID:  newOrder.UserID,
	}); err != nil {
		return fmt.Errorf("failed to publish order created event: %w", err)
	}

	return nil
}

func (s *service) handleOrderCreated(ctx context.Context, envelope *models.Envelope) error {
	var payload models.OrderCreatedEvent
	if err := decodePayload(envelope, &payload); err != nil {
		return err
	}
	return s.scheduleStage(ctx, payload.OrderID, payload.UserID, enum.OrderStatusProcessing)
}

func (s *service) handleOrderProcessed(ctx context.Context, envelope *models.Envelope) error {
	var payload models.OrderProcessedEvent
	if err := decodePayload(envelope, &payload); err != nil {
		return err
	}
	return s.scheduleStage(ctx, payload.OrderID, payload.UserID, enum.OrderStatusShipped)
}

func (s *service) handleOrderShipped(ctx context.Context, envelope *models.Envelope) error {
	var payload models.OrderShippedEvent
	if err := decodePayload(envelope, &payload); err != nil {
		return err
	}
	return s.scheduleStage(ctx, payload.OrderID, payload.UserID, enum.OrderStatusDelivered)
}

// scheduleStage enqueues the delayed advance and returns immediately so the
// transport acknowledgement is never held open for the stage delay.
func (s *service) scheduleStage(ctx context.Context, orderID, userID string, target enum.OrderStatus) error {
	delay := s.stageDelay()

	s.logger.Info("Scheduling stage advance",
		zap.String("order_id", orderID),
		zap.String("target", string(target)),
		zap.Duration("delay", delay))

	return s.scheduler.Schedule(ctx, StageTask{
		OrderID: orderID,
		UserID:  userID,
		Target:  target,
	}, delay)
}

// stageDelay picks a randomized interval standing in for real external work
// (packing, carrier handoff), 2 to 10 minutes by default.
func (s *service) stageDelay() time.Duration {
	if s.stageDelayMax <= s.stageDelayMin {
		return s.stageDelayMin
	}
	return s.stageDelayMin + time.Duration(rand.Int63n(int64(s.stageDelayMax-s.stageDelayMin)))
}

// AdvanceStage runs a due stage task: transition, then emit the next chain
// event. DELIVERED is terminal and emits nothing.
func (s *service) AdvanceStage(ctx context.Context, task StageTask) error {
	changed, err := s.transition(ctx, task.OrderID, task.Target)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	switch task.Target {
	case enum.OrderStatusProcessing:
		return s.publisher.Publish(ctx, models.EventTypeOrderProcessed, models.OrderProcessedEvent{
			OrderID: task.OrderID,
			UserID:  task.UserID,
		})
	case enum.OrderStatusShipped:
		return s.publisher.Publish(ctx, models.EventTypeOrderShipped, models.OrderShippedEvent{
			OrderID: task.OrderID,
			UserID:  task.UserID,
		})
	case enum.OrderStatusDelivered:
		s.logger.Info("Order completed delivery workflow", zap.String("order_id", task.OrderID))
	}

	return nil
}

// transition moves an order to target if, and only if, the persisted status
// still allows it. Cancelled orders and duplicate signals are absorbed as
// no-ops; the conditional update catches races with concurrent handlers.
func (s *service) transition(ctx context.Context, orderID string, target enum.OrderStatus) (bool, error) {
	orderModel, err := s.getOrder(ctx, orderID)
	if err != nil {
		return false, err
	}

	if orderModel.Status == enum.OrderStatusCancelled {
		s.logger.Info("Order was cancelled, skipping stage advance",
			zap.String("order_id", orderID), zap.String("target", string(target)))
		return false, nil
	}

	if orderModel.Status.AtOrPast(target) {
		s.logger.Info("Order already at or past target, skipping stage advance",
			zap.String("order_id", orderID),
			zap.String("status", string(orderModel.Status)),
			zap.String("target", string(target)))
		return false, nil
	}

	if next, ok := orderModel.Status.Next(); !ok || next != target {
		return false, errs.InvalidState(fmt.Sprintf(
			"cannot advance order %s from %s to %s: stages must not be skipped",
			orderID, orderModel.Status, target))
	}

	updated, err := s.order.UpdateStatus(ctx, orderID, orderModel.Status, target, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if !updated {
		// Lost the optimistic write. Re-read: a concurrent cancellation or a
		// duplicate advance both mean there is nothing left to do.
		current, err := s.getOrder(ctx, orderID)
		if err != nil {
			return false, err
		}
		if current.Status == enum.OrderStatusCancelled || current.Status.AtOrPast(target) {
			return false, nil
		}
		s.logger.Warn("Order status changed during stage advance",
			zap.String("order_id", orderID),
			zap.String("status", string(current.Status)),
			zap.String("target", string(target)))
		return false, nil
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(orderModel.Status)),
		zap.String("to", string(target)))

	return true, nil
}

// handleStockUpdateFailed compensates a failed stock reservation by cancelling
// the order. Every failure here is logged and swallowed: the event is acked
// regardless, trading a possibly missed compensation for a queue that keeps
// moving.
func (s *service) handleStockUpdateFailed(ctx context.Context, envelope *models.Envelope) error {
	var payload models.StockUpdateFailedEvent
	if err := decodePayload(envelope, &payload); err != nil {
		s.logger.Error("Failed to decode stock update failed event", zap.Error(err))
		return nil
	}

	s.logger.Error("Stock update failed, cancelling order",
		zap.String("order_id", payload.OrderID),
		zap.String("user_id", payload.UserID),
		zap.String("error_message", payload.ErrorMessage))

	orderModel, err := s.getOrder(ctx, payload.OrderID)
	if err != nil {
		s.logger.Error("Failed to load order for compensation",
			zap.Error(err), zap.String("order_id", payload.OrderID))
		return nil
	}

	if !orderModel.Status.Cancellable() {
		s.logger.Warn("Order cannot be cancelled, stock failure arrived too late",
			zap.String("order_id", payload.OrderID),
			zap.String("status", string(orderModel.Status)))
		return nil
	}

	updated, err := s.order.UpdateStatus(ctx, payload.OrderID, orderModel.Status, enum.OrderStatusCancelled, time.Now())
	if err != nil {
		s.logger.Error("Failed to cancel order after stock update failure",
			zap.Error(err), zap.String("order_id", payload.OrderID))
		return nil
	}
	if !updated {
		s.logger.Warn("Order status changed during compensation",
			zap.String("order_id", payload.OrderID))
		return nil
	}

	// No stock restoration here: a failed reservation never held stock.
	s.logger.Info("Order automatically cancelled due to stock update failure",
		zap.String("order_id", payload.OrderID))

	return nil
}

// CancelOrder aborts an order before shipment on behalf of its owner or an
// admin, and emits the event that restores reserved stock.
func (s *service) CancelOrder(ctx context.Context, orderID, userID string, isAdmin bool) (*models.Order, error) {
	s.logger.Info("Starting order cancellation",
		zap.String("order_id", orderID), zap.String("user_id", userID), zap.Bool("is_admin", isAdmin))

	orderModel, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && orderModel.UserID != userID {
		return nil, errs.Forbidden("user can only cancel their own orders")
	}

	switch orderModel.Status {
	case enum.OrderStatusCancelled:
		return nil, errs.InvalidState("order is already cancelled")
	case enum.OrderStatusShipped:
		return nil, errs.InvalidState("cannot cancel a shipped order")
	case enum.OrderStatusDelivered:
		return nil, errs.InvalidState("cannot cancel a delivered order")
	}

	now := time.Now()
	updated, err := s.order.UpdateStatus(ctx, orderID, orderModel.Status, enum.OrderStatusCancelled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	if !updated {
		return nil, errs.InvalidState("order status changed during cancellation")
	}

	orderModel.Status = enum.OrderStatusCancelled
	orderModel.UpdatedAt = now

	cancelledEvent := models.OrderCancelledEvent{
		OrderID:     orderModel.ID,
		UserID:      orderModel.UserID,
		Items:       orderItemsToCancelledItems(orderModel.Items),
		CancelledAt: now,
	}
	if err := s.publisher.Publish(ctx, models.EventTypeOrderCancelled, cancelledEvent); err != nil {
		// The order is cancelled but stock restoration was not triggered;
		// the caller must know.
		return nil, errs.DependencyFailure("failed to publish order cancelled event", err)
	}

	s.logger.Info("Order cancelled, event published to restore stock",
		zap.String("order_id", orderID), zap.Int("items", len(cancelledEvent.Items)))

	return orderModel, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.getOrder(ctx, orderID)
}

func (s *service) ListOrdersByUser(ctx context.Context, userID string, limit, offset uint64) ([]*models.Order, error) {
	orders, err := s.order.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

func (s *service) ListAllOrders(ctx context.Context, limit, offset uint64) ([]*models.Order, error) {
	orders, err := s.order.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) getOrder(ctx context.Context, orderID string) (*models.Order, error) {
	orderModel, err := s.order.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return orderModel, nil
}

func decodePayload(envelope *models.Envelope, payload any) error {
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", envelope.Type, err)
	}
	return nil
}

func checkoutItemsToOrderItems(items []models.CheckoutItem) []models.OrderItem {
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		orderItems = append(orderItems, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return orderItems
}

func orderItemsToCancelledItems(items []models.OrderItem) []models.CancelledItem {
	cancelled := make([]models.CancelledItem, 0, len(items))
	for _, item := range items {
		cancelled = append(cancelled, models.CancelledItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return cancelled
}
