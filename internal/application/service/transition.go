package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// TransitionEngine implements the status-transition operations:
// mark_complete, mark_failed, update_status. Each is an idempotent boolean
// operation - a blocked or missing row returns false, never an error - and
// mark_complete additionally fires the completion engine whenever its own
// update actually lands the InProgress -> Complete transition.
type TransitionEngine struct {
	tasks      repository.TaskRepository
	taskTypes  repository.TaskTypeRepository
	completion *CompletionEngine
	notifier   domainservice.ClaimNotifier
	logger     domainservice.Logger
}

// NewTransitionEngine creates a new transition engine. notifier may be a
// no-op when claim-availability notifications are disabled.
func NewTransitionEngine(tasks repository.TaskRepository, taskTypes repository.TaskTypeRepository, completion *CompletionEngine, notifier domainservice.ClaimNotifier, logger domainservice.Logger) *TransitionEngine {
	return &TransitionEngine{tasks: tasks, taskTypes: taskTypes, completion: completion, notifier: notifier, logger: logger}
}

// MarkComplete implements mark_complete(task_id, output_location). On a
// successful transition it loads the updated row and hands it to the
// completion engine; a completion-engine failure is logged, not surfaced,
// so the status transition itself stands.
func (e *TransitionEngine) MarkComplete(ctx context.Context, taskID uuid.UUID, outputLocation string) (bool, error) {
	ok, err := e.tasks.UpdateStatus(ctx, taskID, valueobject.TaskStatusComplete, &outputLocation, nil)
	if err != nil {
		return false, fmt.Errorf("mark complete: %w", err)
	}
	if !ok {
		return false, nil
	}

	task, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		e.logger.Error("mark complete: failed to reload task for materialization", "task_id", taskID, "error", err)
		return true, nil
	}
	if err := e.completion.Complete(ctx, task); err != nil {
		e.logger.Error("mark complete: completion engine failed", "task_id", taskID, "error", err)
	}

	// A completed task may satisfy other tasks' dependencies; nudge any
	// worker long-polling this run type rather than waiting on its own
	// poll interval. Best-effort: the claim engine's atomic SQL
	// selection is the only source of truth for what is actually claimable.
	runType := valueobject.RunTypeGPU
	if tt, ttErr := e.taskTypes.GetByName(ctx, task.TaskType); ttErr == nil {
		runType = tt.RunType
	}
	e.notifier.NotifyClaimAvailable(ctx, runType, task.ID.String())
	return true, nil
}

// MarkFailed implements mark_failed(task_id, error).
func (e *TransitionEngine) MarkFailed(ctx context.Context, taskID uuid.UUID, errMsg string) (bool, error) {
	ok, err := e.tasks.UpdateStatus(ctx, taskID, valueobject.TaskStatusFailed, nil, &errMsg)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return ok, nil
}

// UpdateStatus implements update_status(task_id, status, output_location?)
// for admin flows - any target status, subject to the repository's
// lifecycle guard (terminal tasks are not moved); no completion side effect.
func (e *TransitionEngine) UpdateStatus(ctx context.Context, taskID uuid.UUID, status valueobject.TaskStatus, outputLocation *string) (bool, error) {
	ok, err := e.tasks.UpdateStatus(ctx, taskID, status, outputLocation, nil)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	return ok, nil
}
