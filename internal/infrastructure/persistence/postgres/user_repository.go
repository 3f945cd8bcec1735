package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `
		SELECT id, credits, allows_cloud, allows_local, preferences
		FROM users
		WHERE id = $1
	`
	u := &entity.User{}
	var prefs []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Credits, &u.Settings.AllowsCloud, &u.Settings.AllowsLocal, &prefs,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decode user preferences: %w", err)
		}
	}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("encode user preferences: %w", err)
	}
	query := `
		UPDATE users
		SET credits = $2, allows_cloud = $3, allows_local = $4, preferences = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, user.ID, user.Credits, user.Settings.AllowsCloud, user.Settings.AllowsLocal, prefs)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("user")
	}
	return nil
}
