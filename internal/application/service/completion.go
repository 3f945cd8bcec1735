package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/params"
	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
)

// ImagePathNormalizer rewrites image paths embedded in a task's params
// before they are carried into a generation. It is an external
// pure-function collaborator, not part of the completion engine's policy.
type ImagePathNormalizer interface {
	Normalize(params.Set) params.Set
}

// IdentityNormalizer is the no-op ImagePathNormalizer, used when no path
// rewriting is configured.
type IdentityNormalizer struct{}

func (IdentityNormalizer) Normalize(s params.Set) params.Set { return s }

// CompletionEngine implements the completion engine: it
// materializes a Generation the first time a generation-category task
// transitions into Complete, wiring it into a shot when the task's params
// name one.
type CompletionEngine struct {
	tasks       repository.TaskRepository
	taskTypes   repository.TaskTypeRepository
	generations repository.GenerationRepository
	shotLinks   *ShotLinkEngine
	normalizer  ImagePathNormalizer
	logger      domainservice.Logger
}

// NewCompletionEngine creates a new completion engine. normalizer may be
// IdentityNormalizer{} when no path rewriting is needed.
func NewCompletionEngine(
	tasks repository.TaskRepository,
	taskTypes repository.TaskTypeRepository,
	generations repository.GenerationRepository,
	shotLinks *ShotLinkEngine,
	normalizer ImagePathNormalizer,
	logger domainservice.Logger,
) *CompletionEngine {
	return &CompletionEngine{
		tasks:       tasks,
		taskTypes:   taskTypes,
		generations: generations,
		shotLinks:   shotLinks,
		normalizer:  normalizer,
		logger:      logger,
	}
}

// Complete materializes a generation for task, which must
// already be in Complete status. It is a no-op for task types outside the
// 'generation' category, and idempotent via task.GenerationCreated: a
// replay of an already-materialized task does nothing.
func (e *CompletionEngine) Complete(ctx context.Context, task *entity.Task) error {
	if task.Status != valueobject.TaskStatusComplete || task.GenerationCreated {
		return nil
	}

	taskType, err := e.taskTypes.GetByName(ctx, task.TaskType)
	if err != nil {
		return fmt.Errorf("complete task %s: %w", task.ID, err)
	}
	if taskType.Category != valueobject.TaskCategoryGeneration {
		return nil
	}

	if task.OutputLocation == nil || *task.OutputLocation == "" || task.ProjectID == uuid.Nil {
		// Abort without setting the latch; a later retry with
		// a populated output_location can still materialize.
		return nil
	}

	normalized := e.normalizer.Normalize(task.Params)
	shotIDStr := params.ShotID(normalized)
	addInPosition := params.AddInPosition(normalized)
	thumbnailURL := params.ThumbnailURL(normalized)
	genType := valueobject.GenerationTypeForToolType(taskType.ToolType)

	gen := entity.NewGeneration(uuid.Nil, task, genType, *task.OutputLocation)
	gen.Params = normalized.Clone()
	gen.Params["tool_type"] = taskType.ToolType
	gen.Params["projectId"] = task.ProjectID.String()
	gen.Params["outputLocation"] = *task.OutputLocation
	if shotIDStr != "" {
		gen.Params["shotId"] = shotIDStr
	}
	if thumbnailURL != "" {
		gen.ThumbnailURL = thumbnailURL
		gen.Params["thumbnailUrl"] = thumbnailURL
	}

	if err := e.generations.Create(ctx, gen); err != nil {
		return fmt.Errorf("complete task %s: create generation: %w", task.ID, err)
	}

	if shotIDStr != "" {
		shotID, err := uuid.Parse(shotIDStr)
		if err != nil {
			// A malformed identifier disables shot linking but does not
			// abort materialization.
			e.logger.Warn("completion engine: malformed shot_id, skipping shot link",
				"task_id", task.ID, "shot_id", shotIDStr)
		} else if _, linkErr := e.shotLinks.AddGenerationToShot(ctx, shotID, gen.ID, addInPosition); linkErr != nil {
			// Propagation policy: the completion engine swallows shot-link
			// sync faults and logs them; the principal insert stands.
			e.logger.Error("completion engine: shot link failed",
				"task_id", task.ID, "generation_id", gen.ID, "shot_id", shotID, "error", linkErr)
		}
	}

	if _, err := e.tasks.MarkGenerationCreated(ctx, task.ID); err != nil {
		return fmt.Errorf("complete task %s: mark generation created: %w", task.ID, err)
	}
	return nil
}
