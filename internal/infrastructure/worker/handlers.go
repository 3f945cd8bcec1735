package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"
)

// Handlers contains the Asynq task handlers for the scheduler's background
// maintenance jobs.
type Handlers struct {
	tasks            repository.TaskRepository
	workers          repository.WorkerRepository
	clock            domainservice.Clock
	stuckTimeout     time.Duration
	heartbeatTimeout time.Duration
	logger           domainservice.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	tasks repository.TaskRepository,
	workers repository.WorkerRepository,
	clock domainservice.Clock,
	stuckTimeout, heartbeatTimeout time.Duration,
	logger domainservice.Logger,
) *Handlers {
	return &Handlers{
		tasks:            tasks,
		workers:          workers,
		clock:            clock,
		stuckTimeout:     stuckTimeout,
		heartbeatTimeout: heartbeatTimeout,
		logger:           logger,
	}
}

// HandleStuckTaskSweep reports in-progress tasks whose generation started
// more than stuckTimeout ago. This is a reporting signal only; it never
// mutates a task's status.
func (h *Handlers) HandleStuckTaskSweep(ctx context.Context, t *asynq.Task) error {
	threshold := h.clock.Now().Add(-h.stuckTimeout)
	stuck, err := h.tasks.ListStuckTasks(ctx, threshold)
	if err != nil {
		h.logger.Error("stuck task sweep failed", "error", err)
		return err
	}
	if len(stuck) == 0 {
		h.logger.Debug("stuck task sweep found nothing")
		return nil
	}

	ids := make([]string, 0, len(stuck))
	for _, task := range stuck {
		ids = append(ids, task.ID.String())
	}
	h.logger.Warn("stuck tasks detected", "count", len(stuck), "task_ids", ids)
	return nil
}

// HandleWorkerHeartbeatReap marks active workers inactive once their
// heartbeat has gone stale longer than heartbeatTimeout.
func (h *Handlers) HandleWorkerHeartbeatReap(ctx context.Context, t *asynq.Task) error {
	threshold := h.clock.Now().Add(-h.heartbeatTimeout)
	stale, err := h.workers.ListStale(ctx, threshold)
	if err != nil {
		h.logger.Error("worker heartbeat reap failed", "error", err)
		return err
	}
	for _, w := range stale {
		if err := h.workers.MarkInactive(ctx, w.ID); err != nil {
			h.logger.Error("failed to mark worker inactive", "worker_id", w.ID, "error", err)
			continue
		}
		h.logger.Info("reaped stale worker", "worker_id", w.ID, "last_heartbeat", w.LastHeartbeat)
	}
	return nil
}
