package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/params"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// maxUserConcurrency is the per-user in-progress cap.
const maxUserConcurrency = 5

// TaskRepository implements repository.TaskRepository using PostgreSQL. The
// claim methods use the same atomic UPDATE-with-subquery-SELECT-FOR-UPDATE-
// SKIP-LOCKED pattern the generation job repository uses for exactly-once
// claim semantics, extended with affinity ranking and the dependency/
// concurrency eligibility predicates.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new PostgreSQL task repository.
func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, project_id, task_type, params, status, dependant_on, output_location, worker_id,
	created_at, generation_started_at, generation_processed_at, generation_created, error_message`

func scanTask(scan func(dest ...any) error) (*entity.Task, error) {
	t := &entity.Task{}
	var statusStr string
	var rawParams []byte
	var dependantOn pq.StringArray
	err := scan(
		&t.ID, &t.ProjectID, &t.TaskType, &rawParams, &statusStr, &dependantOn, &t.OutputLocation, &t.WorkerID,
		&t.CreatedAt, &t.GenerationStartedAt, &t.GenerationProcessedAt, &t.GenerationCreated, &t.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	t.Status, _ = valueobject.ParseTaskStatus(statusStr)
	p, err := params.ParseSet(rawParams)
	if err != nil {
		return nil, fmt.Errorf("scan task %s: %w", t.ID, err)
	}
	t.Params = p
	t.DependantOn = parseUUIDs(dependantOn)
	return t, nil
}

// parseUUID parses a single UUID string, used wherever sqlx scans a uuid
// column into string (no uuid.UUID Scanner registered).
func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// parseUUIDs converts a pq.StringArray to []uuid.UUID, skipping malformed
// entries rather than failing the whole scan.
func parseUUIDs(strs pq.StringArray) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(strs))
	for _, s := range strs {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	rawParams, err := task.Params.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode task params: %w", err)
	}
	query := `
		INSERT INTO tasks (project_id, task_type, params, status, dependant_on)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		task.ProjectID, task.TaskType, rawParams, task.Status.String(),
		pq.Array(uuidsToStrings(task.DependantOn)),
	).Scan(&task.ID, &task.CreatedAt)
}

func uuidsToStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	t, err := scanTask(func(dest ...any) error {
		return r.db.QueryRowContext(ctx, query, id).Scan(dest...)
	})
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("task")
	}
	if err != nil {
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(uuidsToStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("get tasks by ids: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// dependencySatisfiedPredicate passes a task whose dependency set is
// empty, or whose every referenced id exists and is complete. A dangling
// reference (id not found) is NOT satisfied; the older "missing =
// satisfied" rule is deprecated.
const dependencySatisfiedPredicate = `(
	t.dependant_on IS NULL OR cardinality(t.dependant_on) = 0
	OR NOT EXISTS (
		SELECT 1 FROM unnest(t.dependant_on) AS dep_id
		WHERE NOT EXISTS (
			SELECT 1 FROM tasks d WHERE d.id = dep_id AND d.status = 'complete'
		)
	)
)`

// concurrencyNotExceededPredicate exempts orchestrator tasks from the cap
// and checks the owning user's current non-orchestrator in-progress count
// against maxUserConcurrency. The orchestrator rule is a substring match on
// the type key.
var concurrencyNotExceededPredicate = `(
	t.task_type LIKE '%orchestrator%'
	OR (
		SELECT count(*) FROM tasks it
		JOIN projects ip ON ip.id = it.project_id
		WHERE it.status = 'in_progress'
		  AND it.task_type NOT LIKE '%orchestrator%'
		  AND ip.user_id = p.user_id
	) < ` + fmt.Sprint(maxUserConcurrency) + `
)`

func (r *TaskRepository) ClaimServiceMode(ctx context.Context, worker *entity.Worker, runType *valueobject.RunType, sameModelOnly bool) (*entity.Task, error) {
	query := `
		UPDATE tasks
		SET status = 'in_progress', worker_id = $1, generation_started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT t.id
			FROM tasks t
			JOIN task_types tt ON tt.name = t.task_type
			JOIN projects p ON p.id = t.project_id
			JOIN users u ON u.id = p.user_id
			WHERE t.status = 'queued'
			  AND tt.is_active
			  AND u.credits > 0
			  AND u.allows_cloud
			  AND ($2::text IS NULL OR tt.run_type = $2)
			  AND (NOT $4::bool OR t.params->>'model' = $3)
			  AND ` + dependencySatisfiedPredicate + `
			  AND ` + concurrencyNotExceededPredicate + `
			ORDER BY
				CASE WHEN $3::text IS NOT NULL AND t.params->>'model' = $3 THEN 0 ELSE 1 END,
				t.created_at ASC,
				t.id ASC
			LIMIT 1
			FOR UPDATE OF t SKIP LOCKED
		)
		RETURNING ` + taskColumns
	var runTypeArg *string
	if runType != nil {
		s := runType.String()
		runTypeArg = &s
	}
	t, err := scanTask(func(dest ...any) error {
		return r.db.QueryRowContext(ctx, query, worker.ID, runTypeArg, worker.CurrentModel, sameModelOnly).Scan(dest...)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim service mode: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) ClaimUserMode(ctx context.Context, userID uuid.UUID, runType *valueobject.RunType, bypassCredit bool) (*entity.Task, error) {
	query := `
		UPDATE tasks
		SET status = 'in_progress', generation_started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT t.id
			FROM tasks t
			JOIN task_types tt ON tt.name = t.task_type
			JOIN projects p ON p.id = t.project_id
			JOIN users u ON u.id = p.user_id
			WHERE t.status = 'queued'
			  AND tt.is_active
			  AND p.user_id = $1
			  AND u.allows_local
			  AND ($3::bool OR u.credits > 0)
			  AND ($2::text IS NULL OR tt.run_type = $2)
			  AND ` + dependencySatisfiedPredicate + `
			  AND ` + concurrencyNotExceededPredicate + `
			ORDER BY t.created_at ASC, t.id ASC
			LIMIT 1
			FOR UPDATE OF t SKIP LOCKED
		)
		RETURNING ` + taskColumns
	var runTypeArg *string
	if runType != nil {
		s := runType.String()
		runTypeArg = &s
	}
	t, err := scanTask(func(dest ...any) error {
		return r.db.QueryRowContext(ctx, query, userID, runTypeArg, bypassCredit).Scan(dest...)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim user mode: %w", err)
	}
	return t, nil
}

func (r *TaskRepository) CountInProgressByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE t.status = 'in_progress'
		  AND t.task_type NOT LIKE '%orchestrator%'
		  AND p.user_id = $1
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count in progress by user: %w", err)
	}
	return n, nil
}

func (r *TaskRepository) CountEligibleQueuedByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE t.status = 'queued'
		  AND p.user_id = $1
		  AND ` + dependencySatisfiedPredicate + `
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count eligible queued by user: %w", err)
	}
	return n, nil
}

// UpdateStatus enforces the lifecycle in its WHERE clause: in_progress is
// reachable only from queued, terminal statuses only from in_progress, and
// a terminal status is never left. A blocked or missing row yields
// (false, nil) rather than an error, matching the idempotent-boolean
// convention of mark_complete/mark_failed/update_status.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status valueobject.TaskStatus, outputLocation, errorMessage *string) (bool, error) {
	query := `
		UPDATE tasks
		SET status = $2,
			output_location = COALESCE($3, output_location),
			error_message = COALESCE($4, error_message),
			generation_processed_at = CASE WHEN $2 IN ('complete', 'failed', 'cancelled') THEN NOW() ELSE generation_processed_at END,
			updated_at = NOW()
		WHERE id = $1
		  AND (
			($2 = 'in_progress' AND status = 'queued')
			OR ($2 IN ('complete', 'failed', 'cancelled') AND status = 'in_progress')
		  )
	`
	res, err := r.db.ExecContext(ctx, query, id, status.String(), outputLocation, errorMessage)
	if err != nil {
		return false, fmt.Errorf("update task status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task status: %w", err)
	}
	return rows > 0, nil
}

// MarkGenerationCreated flips the generation_created latch, returning
// (true, nil) the first time and (false, nil) on every subsequent call for
// the same task. The completion engine relies on this as its idempotency
// guard.
func (r *TaskRepository) MarkGenerationCreated(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE tasks
		SET generation_created = true, updated_at = NOW()
		WHERE id = $1 AND generation_created = false
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark generation created: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark generation created: %w", err)
	}
	return rows > 0, nil
}

func (r *TaskRepository) ListStuckTasks(ctx context.Context, olderThan time.Time) ([]*entity.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = 'in_progress' AND generation_started_at < $1`
	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list stuck tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
