package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sapliy/reminder-engine/internal/reminder"
	"github.com/sapliy/reminder-engine/pkg/observability"
)

// DefaultAdHocQueue carries one-off notification requests from other services.
const DefaultAdHocQueue = "reminders.adhoc"

// AdHocTask is one queued request for a one-off notification.
type AdHocTask struct {
	ID string `json:"id"`
	AdHocRequest
}

// AdHocScheduler is satisfied by *Dispatcher.
type AdHocScheduler interface {
	ScheduleAdHoc(ctx context.Context, title, body string, at time.Time, payload map[string]string) (reminder.Descriptor, error)
}

// Worker processes ad-hoc notification tasks from RabbitMQ
type Worker struct {
	scheduler AdHocScheduler
	redis     *redis.Client
	logger    *observability.Logger
	now       func() time.Time
}

func NewWorker(scheduler AdHocScheduler, redisClient *redis.Client, logger *observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Worker{
		scheduler: scheduler,
		redis:     redisClient,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessTask schedules a queued one-off notification. Malformed tasks and
// tasks that cannot be scheduled without permission are dropped; any other
// failure is returned so the broker dead-letters the task.
func (w *Worker) ProcessTask(ctx context.Context, body []byte) error {
	var task AdHocTask
	if err := json.Unmarshal(body, &task); err != nil {
		w.logger.Warn("Dropping malformed ad-hoc task", "error", err)
		return nil
	}
	if task.Title == "" || task.TriggerAt.IsZero() {
		w.logger.Warn("Dropping incomplete ad-hoc task", "task_id", task.ID)
		return nil
	}

	// Idempotency check
	key := fmt.Sprintf("reminders:adhoc:done:%s", task.ID)
	if w.redis != nil && task.ID != "" {
		exists, err := w.redis.Exists(ctx, key).Result()
		if err != nil {
			w.logger.Warn("Redis error checking idempotency", "error", err)
		} else if exists > 0 {
			w.logger.Info("Ad-hoc task already processed", "task_id", task.ID)
			return nil
		}
	}

	if !task.TriggerAt.After(w.now()) {
		task.TriggerAt = w.now().Add(time.Second)
	}

	desc, err := w.scheduler.ScheduleAdHoc(ctx, task.Title, task.Body, task.TriggerAt, task.Payload)
	if errors.Is(err, ErrPermissionNotGranted) {
		w.logger.Warn("Dropping ad-hoc task without notification permission", "task_id", task.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if w.redis != nil && task.ID != "" {
		if err := w.redis.Set(ctx, key, desc.ID, 24*time.Hour).Err(); err != nil {
			w.logger.Warn("Redis error marking ad-hoc task processed", "task_id", task.ID, "error", err)
		}
	}

	w.logger.Info("Processed ad-hoc task", "task_id", task.ID, "id", desc.ID)
	return nil
}
