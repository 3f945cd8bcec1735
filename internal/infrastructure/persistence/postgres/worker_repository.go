package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// WorkerRepository implements repository.WorkerRepository using PostgreSQL.
type WorkerRepository struct {
	db *sql.DB
}

// NewWorkerRepository creates a new PostgreSQL worker repository.
func NewWorkerRepository(db *sql.DB) repository.WorkerRepository {
	return &WorkerRepository{db: db}
}

func scanWorker(scan func(dest ...any) error) (*entity.Worker, error) {
	w := &entity.Worker{}
	var statusStr string
	err := scan(&w.ID, &w.InstanceClass, &statusStr, &w.LastHeartbeat, &w.CurrentModel)
	if err != nil {
		return nil, err
	}
	w.Status, _ = valueobject.ParseWorkerStatus(statusStr)
	return w, nil
}

func (r *WorkerRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Worker, error) {
	query := `SELECT id, instance_class, status, last_heartbeat, current_model FROM workers WHERE id = $1`
	w, err := scanWorker(func(dest ...any) error {
		return r.db.QueryRowContext(ctx, query, id).Scan(dest...)
	})
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("worker")
	}
	if err != nil {
		return nil, fmt.Errorf("get worker by id: %w", err)
	}
	return w, nil
}

// Upsert registers a worker on its first heartbeat, or refreshes its
// heartbeat and current model on subsequent ones, so an unknown worker's
// first claim attempt also registers it.
func (r *WorkerRepository) Upsert(ctx context.Context, worker *entity.Worker) error {
	query := `
		INSERT INTO workers (id, instance_class, status, last_heartbeat, current_model)
		VALUES ($1, $2, 'active', NOW(), $3)
		ON CONFLICT (id) DO UPDATE
		SET status = 'active', last_heartbeat = NOW(), current_model = EXCLUDED.current_model,
			instance_class = EXCLUDED.instance_class
	`
	_, err := r.db.ExecContext(ctx, query, worker.ID, worker.InstanceClass, worker.CurrentModel)
	if err != nil {
		return fmt.Errorf("upsert worker: %w", err)
	}
	return nil
}

func (r *WorkerRepository) ListStale(ctx context.Context, olderThan time.Time) ([]*entity.Worker, error) {
	query := `SELECT id, instance_class, status, last_heartbeat, current_model FROM workers WHERE status = 'active' AND last_heartbeat < $1`
	rows, err := r.db.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list stale workers: %w", err)
	}
	defer rows.Close()

	var workers []*entity.Worker
	for rows.Next() {
		w, err := scanWorker(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (r *WorkerRepository) MarkInactive(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE workers SET status = 'inactive' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark worker inactive: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark worker inactive: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("worker")
	}
	return nil
}
