package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// TaskTypeRepository implements repository.TaskTypeRepository using
// PostgreSQL.
type TaskTypeRepository struct {
	db *sql.DB
}

// NewTaskTypeRepository creates a new PostgreSQL task-type repository.
func NewTaskTypeRepository(db *sql.DB) repository.TaskTypeRepository {
	return &TaskTypeRepository{db: db}
}

func (r *TaskTypeRepository) GetByName(ctx context.Context, name string) (*entity.TaskType, error) {
	query := `
		SELECT name, run_type, category, tool_type, billing_type, is_active
		FROM task_types
		WHERE name = $1
	`
	tt := &entity.TaskType{}
	var runType, category, billingType string
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&tt.Name, &runType, &category, &tt.ToolType, &billingType, &tt.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("task_type")
	}
	if err != nil {
		return nil, fmt.Errorf("get task type by name: %w", err)
	}
	tt.RunType, _ = valueobject.ParseRunType(runType)
	tt.Category, _ = valueobject.ParseTaskCategory(category)
	tt.BillingType, _ = valueobject.ParseBillingType(billingType)
	return tt, nil
}
