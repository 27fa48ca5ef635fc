package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"gofalre.io/orders/models"
)

type countingProcessor struct {
	mu   sync.Mutex
	seen []string
}

func (p *countingProcessor) ProcessEvent(_ context.Context, event *models.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, event.ID)
	return nil
}

func TestWorkerPoolProcessesSubmittedEvents(t *testing.T) {
	processor := &countingProcessor{}
	wp := NewWorkerPool(3, processor, zap.NewNop())

	for i := 0; i < 20; i++ {
		wp.Submit(context.Background(), &models.Envelope{
			ID:   string(rune('a' + i)),
			Type: models.EventTypeOrderCreated,
		})
	}

	wp.Shutdown()

	processor.mu.Lock()
	defer processor.mu.Unlock()
	assert.Len(t, processor.seen, 20)
}

type blockingProcessor struct {
	release chan struct{}
	mu      sync.Mutex
	active  int
	peak    int
}

func (p *blockingProcessor) ProcessEvent(_ context.Context, _ *models.Envelope) error {
	p.mu.Lock()
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	p.mu.Unlock()

	<-p.release

	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	return nil
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	processor := &blockingProcessor{release: make(chan struct{})}
	wp := NewWorkerPool(2, processor, zap.NewNop())

	for i := 0; i < 8; i++ {
		wp.Submit(context.Background(), &models.Envelope{Type: models.EventTypeOrderCreated})
	}

	time.Sleep(50 * time.Millisecond)
	close(processor.release)
	wp.Shutdown()

	processor.mu.Lock()
	defer processor.mu.Unlock()
	assert.LessOrEqual(t, processor.peak, 2)
}
