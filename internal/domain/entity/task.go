package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/params"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// Task is a queued unit of work belonging to a project (and, transitively, a
// user). Its lifecycle is Queued -> InProgress -> {Complete, Failed,
// Cancelled}; once terminal it never transitions again.
type Task struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	TaskType  string
	Params    params.Set
	Status    valueobject.TaskStatus

	// DependantOn is kept as a set even when single-element, per design note:
	// "Dependency as a set, not a singleton".
	DependantOn []uuid.UUID

	OutputLocation *string
	WorkerID       *uuid.UUID

	CreatedAt             time.Time
	GenerationStartedAt   *time.Time
	GenerationProcessedAt *time.Time
	GenerationCreated     bool

	ErrorMessage *string
}

// IsOrchestrator reports whether this task's type should be excluded from
// per-user concurrency accounting. The rule is a substring match on the
// type key.
func IsOrchestrator(taskType string) bool {
	return strings.Contains(taskType, "orchestrator")
}

// TaskType is a task-type registry entry: the static configuration a
// task's TaskType key resolves to.
type TaskType struct {
	Name        string
	RunType     valueobject.RunType
	Category    valueobject.TaskCategory
	ToolType    string
	BillingType valueobject.BillingType
	IsActive    bool
}

// DefaultTaskType returns the registry defaults (run_type defaults to gpu).
func DefaultTaskType(name string) TaskType {
	return TaskType{
		Name:     name,
		RunType:  valueobject.RunTypeGPU,
		Category: valueobject.TaskCategoryGeneration,
		IsActive: true,
	}
}
