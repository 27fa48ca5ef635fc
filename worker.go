package orders

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/orders/models"
)

// EventProcessor consumes one inbound event envelope.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *models.Envelope) error
}

// WorkerPool bounds how many inbound events are handled concurrently. Handlers
// for different orders run fully in parallel; nothing serialises handlers for
// the same order, correctness rests on the status checks at write time.
type WorkerPool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	logger    *zap.Logger
	processor EventProcessor
}

func NewWorkerPool(size int, processor EventProcessor, logger *zap.Logger) *WorkerPool {
	wp := &WorkerPool{
		tasks:     make(chan func(), 1000),
		logger:    logger,
		processor: processor,
	}

	wp.wg.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

func (wp *WorkerPool) Submit(ctx context.Context, event *models.Envelope) {
	wp.tasks <- func() {
		if err := wp.processor.ProcessEvent(ctx, event); err != nil {
			wp.logger.Error("Failed to process event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID))
		}
	}
}

// Shutdown stops accepting work and waits until queued tasks finish.
func (wp *WorkerPool) Shutdown() {
	close(wp.tasks)
	wp.wg.Wait()
}
