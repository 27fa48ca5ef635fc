package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"gofalre.io/orders/driver"
	"gofalre.io/orders/models"
	"gofalre.io/orders/models/enum"
)

var _ Repository = (*repository)(nil)

// Repository is the persistent order store. Orders are never deleted:
// cancellation and delivery are durable terminal records.
type Repository interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, orderID string) (*models.Order, error)

	// UpdateStatus applies the optimistic update-if-matches discipline: the row
	// is written only when its status still equals from. It reports whether a
	// row was updated.
	UpdateStatus(ctx context.Context, orderID string, from, to enum.OrderStatus, updatedAt time.Time) (bool, error)

	ListByUser(ctx context.Context, userID string, limit, offset uint64) ([]*models.Order, error)
	ListAll(ctx context.Context, limit, offset uint64) ([]*models.Order, error)
}

type repository struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, tm *driver.TransactionManager, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		tm:     tm,
		logger: logger,
	}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO orders (id, user_id, status, payment_method, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, order.UserID, order.Status, order.PaymentMethod, order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create order", zap.Error(err))
			return err
		}

		batch := &pgx.Batch{}
		for _, item := range order.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
				order.ID, item.ProductID, item.Quantity,
			)
		}
		results := tx.SendBatch(ctx, batch)
		defer func() {
			if err := results.Close(); err != nil {
				r.logger.Error("Failed to close order items batch", zap.Error(err))
			}
		}()
		for range order.Items {
			if _, err := results.Exec(); err != nil {
				r.logger.Error("Failed to add order item", zap.Error(err))
				return err
			}
		}

		return nil
	})
}

func (r *repository) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.conn.QueryRow(ctx,
		`SELECT id, user_id, status, payment_method, created_at, updated_at
		 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&order.ID, &order.UserID, &order.Status, &order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, orderID)
	if err != nil {
		r.logger.Error("Failed to list order items", zap.Error(err), zap.String("order_id", orderID))
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID string, from, to enum.OrderStatus, updatedAt time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, updatedAt, orderID, from,
	)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.Error(err), zap.String("order_id", orderID))
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string, limit, offset uint64) ([]*models.Order, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, user_id, status, payment_method, created_at, updated_at
		 FROM orders WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, int64(limit), int64(offset),
	)
	if err != nil {
		r.logger.Error("Failed to list orders by user", zap.Error(err), zap.String("user_id", userID))
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

func (r *repository) ListAll(ctx context.Context, limit, offset uint64) ([]*models.Order, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, user_id, status, payment_method, created_at, updated_at
		 FROM orders
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		int64(limit), int64(offset),
	)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

func (r *repository) listItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrders(rows pgx.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.Status, &order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, &order)
	}
	return orders, rows.Err()
}
