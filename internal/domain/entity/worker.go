package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// Worker is a registered execution node the claim engine assigns tasks to.
// CurrentModel, when set, drives claim_service's affinity ranking.
type Worker struct {
	ID            uuid.UUID
	InstanceClass string
	Status        valueobject.WorkerStatus
	LastHeartbeat time.Time
	CurrentModel  *string
	Metadata      map[string]any
}

// IsStale reports whether the worker's last heartbeat is older than timeout,
// the condition the reaper uses to mark it inactive.
func (w *Worker) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(w.LastHeartbeat) > timeout
}
