package event

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gofalre.io/orders/driver"
	"gofalre.io/orders/models"
)

var _ Repository = (*repository)(nil)

// Repository records consumed event envelopes so duplicate deliveries can be
// recognised and skipped.
type Repository interface {
	Create(ctx context.Context, event *models.ProcessedEvent) error
	GetByID(ctx context.Context, id string) (*models.ProcessedEvent, error)
	MarkAsProcessed(ctx context.Context, id string) error
}

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) (Repository, error) {
	return &repository{
		conn:   conn,
		logger: logger,
	}, nil
}

func (r *repository) Create(ctx context.Context, event *models.ProcessedEvent) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO processed_events (id, type, processed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Type, event.Processed, event.CreatedAt, event.UpdatedAt,
	)
	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.ProcessedEvent, error) {
	var event models.ProcessedEvent
	err := r.conn.QueryRow(ctx,
		`SELECT id, type, processed, created_at, updated_at FROM processed_events WHERE id = $1`,
		id,
	).Scan(&event.ID, &event.Type, &event.Processed, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) MarkAsProcessed(ctx context.Context, id string) error {
	_, err := r.conn.Exec(ctx,
		`UPDATE processed_events SET processed = TRUE, updated_at = $1 WHERE id = $2`,
		time.Now(), id,
	)
	return err
}
