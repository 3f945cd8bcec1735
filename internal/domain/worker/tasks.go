package worker

import (
	"github.com/hibiken/asynq"
)

// Task type constants for the scheduler's background maintenance sweeps.
const (
	TypeStuckTaskSweep      = "scheduler:stuck_sweep"
	TypeWorkerHeartbeatReap = "scheduler:heartbeat_reap"
)

// QueueDefault is the single queue both scheduled jobs run on; neither
// competes with user-facing latency-sensitive work since the scheduler has
// no other Asynq-driven queues.
const QueueDefault = "default"

// NewStuckTaskSweepTask creates the periodic stuck-task detection task.
// Stuck detection is a reporting signal, not an automatic recovery.
func NewStuckTaskSweepTask() *asynq.Task {
	return asynq.NewTask(TypeStuckTaskSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// NewWorkerHeartbeatReapTask creates the periodic worker heartbeat reaper
// task, which marks workers inactive after a heartbeat timeout.
func NewWorkerHeartbeatReapTask() *asynq.Task {
	return asynq.NewTask(TypeWorkerHeartbeatReap, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
