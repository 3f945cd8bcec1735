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

// ShotRepository implements repository.ShotRepository using PostgreSQL.
// LockForUpdate takes a Postgres advisory transaction lock keyed by the
// shot's id, serializing all timeline-frame mutations for that shot.
type ShotRepository struct {
	db *sql.DB
}

// NewShotRepository creates a new PostgreSQL shot repository.
func NewShotRepository(db *sql.DB) repository.ShotRepository {
	return &ShotRepository{db: db}
}

func (r *ShotRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Shot, error) {
	query := `SELECT id, project_id, name, settings FROM shots WHERE id = $1`
	s := &entity.Shot{}
	var rawSettings []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.ProjectID, &s.Name, &rawSettings)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("shot")
	}
	if err != nil {
		return nil, fmt.Errorf("get shot by id: %w", err)
	}
	if len(rawSettings) > 0 {
		if err := json.Unmarshal(rawSettings, &s.Settings); err != nil {
			return nil, fmt.Errorf("decode shot settings: %w", err)
		}
	}
	return s, nil
}

// LockForUpdate must be called within the transaction the shot-link engine
// is about to mutate shot-links in. pg_advisory_xact_lock is released
// automatically at transaction end.
func (r *ShotRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, id.String())
	if err != nil {
		return fmt.Errorf("lock shot %s: %w", id, err)
	}
	return nil
}

// LockForUpdateTx is the tx-bound variant LockForUpdate needs when called
// from inside the shot-link engine's transaction.
func (r *ShotRepository) LockForUpdateTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, id.String())
	if err != nil {
		return fmt.Errorf("lock shot %s: %w", id, err)
	}
	return nil
}
