package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	domainservice "github.com/sogos/mirai-scheduler/internal/domain/service"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
)

// ClaimEngine implements the claim engine: atomic FIFO
// selection plus the Queued -> InProgress state transition, binding a
// worker or a user directly. Contention on a candidate row is swallowed
// and reported as an empty result, never an error.
type ClaimEngine struct {
	tasks   repository.TaskRepository
	workers repository.WorkerRepository
	clock   domainservice.Clock
	logger  domainservice.Logger
}

// NewClaimEngine creates a new claim engine.
func NewClaimEngine(
	tasks repository.TaskRepository,
	workers repository.WorkerRepository,
	clock domainservice.Clock,
	logger domainservice.Logger,
) *ClaimEngine {
	return &ClaimEngine{tasks: tasks, workers: workers, clock: clock, logger: logger}
}

// ClaimServiceRequest is the input to ClaimService.
type ClaimServiceRequest struct {
	WorkerID      uuid.UUID
	InstanceClass string
	IncludeActive bool // reporting convenience only; never re-claims an in-progress task
	RunType       *valueobject.RunType
	SameModelOnly bool
	CurrentModel  *string
}

// ClaimService implements claim_service(worker_id, include_active?,
// run_type?, same_model_only?). A missing or unregistered worker is
// auto-registered as an active external worker with the current heartbeat
// before selection proceeds. req.RunType is forwarded to the repository
// unchanged; turning an invalid or empty run_type into "no filter" is done
// by the HTTP layer (httpapi parseRunTypeFilter) before the request gets here.
func (e *ClaimEngine) ClaimService(ctx context.Context, req ClaimServiceRequest) (*entity.Task, error) {
	worker, err := e.registerWorker(ctx, req.WorkerID, req.InstanceClass, req.CurrentModel)
	if err != nil {
		return nil, fmt.Errorf("claim service: %w", err)
	}
	if req.SameModelOnly && worker.CurrentModel == nil {
		// Nothing to match against; same_model_only degenerates to no match.
		return nil, nil
	}

	task, err := e.tasks.ClaimServiceMode(ctx, worker, req.RunType, req.SameModelOnly)
	if err != nil {
		return nil, fmt.Errorf("claim service: %w", err)
	}
	if task == nil {
		e.logger.Debug("claim_service found no eligible task", "worker_id", req.WorkerID)
		return nil, nil
	}
	e.logger.Info("claim_service claimed task", "worker_id", req.WorkerID, "task_id", task.ID)
	return task, nil
}

// ClaimUserRequest is the input to ClaimUser.
type ClaimUserRequest struct {
	UserID        uuid.UUID
	IncludeActive bool
	RunType       *valueobject.RunType
	BypassCredit  bool // personal-access-token flavor
}

// ClaimUser implements claim_user(user_id, include_active?, run_type?).
func (e *ClaimEngine) ClaimUser(ctx context.Context, req ClaimUserRequest) (*entity.Task, error) {
	task, err := e.tasks.ClaimUserMode(ctx, req.UserID, req.RunType, req.BypassCredit)
	if err != nil {
		return nil, fmt.Errorf("claim user: %w", err)
	}
	if task == nil {
		e.logger.Debug("claim_user found no eligible task", "user_id", req.UserID)
		return nil, nil
	}
	e.logger.Info("claim_user claimed task", "user_id", req.UserID, "task_id", task.ID)
	return task, nil
}

// registerWorker loads the worker, auto-registering it on first contact.
// Upsert refreshes the heartbeat and current model unconditionally, which
// is what makes a stale worker's reappearance self-healing.
func (e *ClaimEngine) registerWorker(ctx context.Context, id uuid.UUID, instanceClass string, currentModel *string) (*entity.Worker, error) {
	worker := &entity.Worker{
		ID:            id,
		InstanceClass: instanceClass,
		CurrentModel:  currentModel,
		LastHeartbeat: e.clock.Now(),
	}
	if err := e.workers.Upsert(ctx, worker); err != nil {
		return nil, fmt.Errorf("register worker: %w", err)
	}
	registered, err := e.workers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("register worker: %w", err)
	}
	return registered, nil
}
