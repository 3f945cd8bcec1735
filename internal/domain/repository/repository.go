// Package repository defines the persistence boundary for every aggregate
// the scheduler operates on: one interface per aggregate, mirrored in
// postgres by a concrete implementation under
// internal/infrastructure/persistence/postgres.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// GetByID retrieves a user by their ID.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// Update updates a user's credits/settings.
	Update(ctx context.Context, user *entity.User) error
}

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Project, error)
}

// TaskTypeRepository defines the interface for task-type registry access.
type TaskTypeRepository interface {
	// GetByName retrieves the registry entry for a task type key.
	GetByName(ctx context.Context, name string) (*entity.TaskType, error)
}

// TaskRepository defines the interface for task data access, including the
// atomic claim operations at the heart of the claim engine.
type TaskRepository interface {
	// Create creates a new task.
	Create(ctx context.Context, task *entity.Task) error

	// GetByID retrieves a task by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Task, error)

	// GetByIDs retrieves every task in ids, for dependency evaluation.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Task, error)

	// ClaimServiceMode atomically selects and claims the single highest
	// priority eligible queued task across all credit- and
	// cloud-capability-eligible users, for the given worker, honoring the
	// worker's model affinity and an optional run-type filter. With
	// sameModelOnly set, tasks not selecting the worker's current model are
	// excluded rather than merely ranked lower. Returns nil, nil when no
	// eligible task exists.
	ClaimServiceMode(ctx context.Context, worker *entity.Worker, runType *valueobject.RunType, sameModelOnly bool) (*entity.Task, error)

	// ClaimUserMode atomically selects and claims the single highest
	// priority eligible queued task owned by userID. bypassCredit skips the
	// credit>0 check (the personal-access-token flavor); the allows_local
	// capability flag is never bypassed. Returns nil, nil when no eligible
	// task exists.
	ClaimUserMode(ctx context.Context, userID uuid.UUID, runType *valueobject.RunType, bypassCredit bool) (*entity.Task, error)

	// CountInProgressByUser counts a user's non-orchestrator in-progress
	// tasks.
	CountInProgressByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// CountEligibleQueuedByUser counts a user's queued tasks that are
	// currently dependency-satisfied.
	CountEligibleQueuedByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// UpdateStatus transitions a task to a terminal or in-progress status,
	// setting the corresponding timestamp fields and, when non-nil,
	// output_location/error_message. The guard permits only queued ->
	// in_progress and in_progress -> terminal; ok is false (not an error)
	// when the guard blocks the write or the task does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status valueobject.TaskStatus, outputLocation, errorMessage *string) (ok bool, err error)

	// MarkGenerationCreated sets the generation_created latch, returning
	// false if it was already set.
	MarkGenerationCreated(ctx context.Context, id uuid.UUID) (bool, error)

	// ListStuckTasks returns in-progress tasks whose generation_started_at
	// predates the given threshold, for the stuck-task sweep.
	ListStuckTasks(ctx context.Context, olderThan time.Time) ([]*entity.Task, error)
}

// WorkerRepository defines the interface for worker registration and
// heartbeat tracking.
type WorkerRepository interface {
	// GetByID retrieves a worker by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Worker, error)

	// Upsert registers a worker (on first heartbeat) or updates its
	// heartbeat and current model.
	Upsert(ctx context.Context, worker *entity.Worker) error

	// ListStale returns active workers whose last heartbeat predates the
	// given threshold, for the heartbeat reaper.
	ListStale(ctx context.Context, olderThan time.Time) ([]*entity.Worker, error)

	// MarkInactive flips a worker's status to inactive.
	MarkInactive(ctx context.Context, id uuid.UUID) error
}

// GenerationRepository defines the interface for generation data access.
type GenerationRepository interface {
	// Create creates a new generation.
	Create(ctx context.Context, gen *entity.Generation) error

	// GetByID retrieves a generation by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Generation, error)

	// UpdateShotData overwrites the denormalized shot_data field, within the
	// caller's transaction.
	UpdateShotData(ctx context.Context, id uuid.UUID, data entity.ShotFrames) error
}

// ShotRepository defines the interface for shot data access.
type ShotRepository interface {
	// GetByID retrieves a shot by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Shot, error)

	// LockForUpdate takes the shot-scoped serialization lock the timeline
	// engine requires before mutating shot-links.
	LockForUpdate(ctx context.Context, id uuid.UUID) error
}

// AnalysisRow is one queued task's eligibility-relevant attributes, joined
// against its owning user and task-type in a single read, so the
// count/analysis engine can derive rejection reasons and
// capacity contributions without a query per task.
type AnalysisRow struct {
	TaskID               uuid.UUID
	UserID               uuid.UUID
	Credits              int64
	AllowsCloud          bool
	AllowsLocal          bool
	RunType              valueobject.RunType
	IsOrchestratorType   bool
	DependencySatisfied  bool
	InProgressCount      int
	CloudInProgressCount int
}

// UserEligibility is one user's capacity inputs for the count engine,
// covering users who carry in-progress tasks but currently have zero
// queued tasks - relevant only when include_active is true.
type UserEligibility struct {
	UserID               uuid.UUID
	Credits              int64
	AllowsCloud          bool
	AllowsLocal          bool
	InProgressCount      int
	CloudInProgressCount int
}

// AnalysisRepository defines the read model the count/analysis engine
// queries; it never mutates state.
type AnalysisRepository interface {
	// ListQueuedAnalysisRows returns one row per queued task belonging to
	// an active task type, regardless of run type or user capability, so
	// the analysis engine can classify every task by rejection reason.
	ListQueuedAnalysisRows(ctx context.Context) ([]AnalysisRow, error)

	// ListEligibleUsers returns credit- and capability-eligible users
	// (allows_cloud for serviceMode, allows_local otherwise), including
	// those with zero queued tasks, for the capacity-bounded count sum.
	ListEligibleUsers(ctx context.Context, serviceMode bool) ([]UserEligibility, error)
}

// ShotLinkRepository defines the interface for shot-link/timeline data
// access.
type ShotLinkRepository interface {
	// Create inserts a new shot-link.
	Create(ctx context.Context, link *entity.ShotLink) error

	// ListByShot returns every link in a shot, ordered by
	// (timeline_frame NULLS LAST, created_at ASC, generation_id ASC).
	ListByShot(ctx context.Context, shotID uuid.UUID) ([]*entity.ShotLink, error)

	// ListByGeneration returns every link referencing a generation, used to
	// rebuild that generation's shot_data.
	ListByGeneration(ctx context.Context, generationID uuid.UUID) ([]*entity.ShotLink, error)

	// ClearFrames nulls out timeline_frame for the given link IDs (stage one
	// of apply_timeline_frames's two-stage update).
	ClearFrames(ctx context.Context, ids []uuid.UUID) error

	// SetFrame writes a single link's timeline_frame.
	SetFrame(ctx context.Context, id uuid.UUID, frame *int) error
}

// Transactor runs a shot-link mutation inside one database transaction,
// having already taken the shot-scoped advisory lock, so the
// shot-link write and the denormalized shot_data rebuild it triggers commit
// or roll back together - never a torn state.
type Transactor interface {
	WithinShotTx(ctx context.Context, shotID uuid.UUID, fn func(ctx context.Context, links ShotLinkRepository, gens GenerationRepository) error) error
}
