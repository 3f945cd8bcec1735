package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
)

// ProjectRepository implements repository.ProjectRepository using PostgreSQL.
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new PostgreSQL project repository.
func NewProjectRepository(db *sql.DB) repository.ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	query := `
		SELECT id, user_id, name, description
		FROM projects
		WHERE id = $1
	`
	p := &entity.Project{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &p.Name, &p.Description)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("project")
	}
	if err != nil {
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return p, nil
}
