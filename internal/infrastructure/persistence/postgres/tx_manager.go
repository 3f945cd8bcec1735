package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
)

// TxManager implements repository.Transactor: it takes the shot-scoped
// advisory lock and hands the shot-link engine tx-bound repositories, so a
// shot-link mutation and the shot_data rebuild it triggers land in one
// commit.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new PostgreSQL transaction manager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithinShotTx(ctx context.Context, shotID uuid.UUID, fn func(ctx context.Context, links repository.ShotLinkRepository, gens repository.GenerationRepository) error) error {
	return withTx(ctx, m.db, func(tx *sql.Tx) error {
		shots := &ShotRepository{db: m.db}
		if err := shots.LockForUpdateTx(ctx, tx, shotID); err != nil {
			return err
		}
		links := (&ShotLinkRepository{}).WithTx(tx)
		gens := (&GenerationRepository{}).WithTx(tx)
		return fn(ctx, links, gens)
	})
}
