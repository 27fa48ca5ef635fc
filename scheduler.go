package orders

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gofalre.io/orders/models/enum"
)

// StageTask is one pending stage advance: after its due time the order is
// moved to Target and the next chain event is emitted.
type StageTask struct {
	OrderID string           `json:"order_id"`
	UserID  string           `json:"user_id"`
	Target  enum.OrderStatus `json:"target"`
}

// StageScheduler defers a stage advance without blocking a consumer.
type StageScheduler interface {
	Schedule(ctx context.Context, task StageTask, delay time.Duration) error
}

// StageAdvancer executes a due stage task.
type StageAdvancer interface {
	AdvanceStage(ctx context.Context, task StageTask) error
}

// drainBatch caps how many due tasks one poll fetches.
const drainBatch = 100

// RedisStageScheduler keeps pending stage tasks in a Redis sorted set scored
// by due time. Because tasks live outside the process, a restart resumes them
// on the next poll instead of stranding orders mid-lifecycle.
type RedisStageScheduler struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
	advancer     StageAdvancer
	logger       *zap.Logger
}

func NewRedisStageScheduler(client *redis.Client, key string, pollInterval time.Duration, advancer StageAdvancer, logger *zap.Logger) *RedisStageScheduler {
	return &RedisStageScheduler{
		client:       client,
		key:          key,
		pollInterval: pollInterval,
		advancer:     advancer,
		logger:       logger,
	}
}

func (s *RedisStageScheduler) Schedule(ctx context.Context, task StageTask, delay time.Duration) error {
	member, err := json.Marshal(task)
	if err != nil {
		return err
	}

	dueAt := time.Now().Add(delay)
	if err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		s.logger.Error("Failed to schedule stage task",
			zap.Error(err),
			zap.String("order_id", task.OrderID),
			zap.String("target", string(task.Target)))
		return err
	}

	s.logger.Info("Stage task scheduled",
		zap.String("order_id", task.OrderID),
		zap.String("target", string(task.Target)),
		zap.Duration("delay", delay))

	return nil
}

// Run polls for due tasks until the context is cancelled. The first poll also
// recovers tasks that were pending when a previous process stopped.
func (s *RedisStageScheduler) Run(ctx context.Context) {
	s.logger.Info("Stage scheduler started",
		zap.String("key", s.key), zap.Duration("poll_interval", s.pollInterval))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainDue(ctx)
		case <-ctx.Done():
			s.logger.Info("Stage scheduler stopped")
			return
		}
	}
}

func (s *RedisStageScheduler) drainDue(ctx context.Context) {
	for {
		members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
			Count: drainBatch,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("Failed to fetch due stage tasks", zap.Error(err))
			}
			return
		}
		if len(members) == 0 {
			return
		}

		for _, member := range members {
			// ZRem claims the task; another instance may have won the race.
			removed, err := s.client.ZRem(ctx, s.key, member).Result()
			if err != nil {
				s.logger.Error("Failed to claim stage task", zap.Error(err))
				continue
			}
			if removed == 0 {
				continue
			}

			var task StageTask
			if err := json.Unmarshal([]byte(member), &task); err != nil {
				s.logger.Error("Failed to decode stage task, dropping it",
					zap.Error(err), zap.String("member", member))
				continue
			}

			// Stage-advance failures are logged and dropped: no retry path is
			// defined, a stuck order needs manual re-drive.
			if err := s.advancer.AdvanceStage(ctx, task); err != nil {
				s.logger.Error("Failed to advance stage",
					zap.Error(err),
					zap.String("order_id", task.OrderID),
					zap.String("target", string(task.Target)))
			}
		}

		if len(members) < drainBatch {
			return
		}
	}
}
