package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
)

// ShotLinkRepository implements repository.ShotLinkRepository using
// PostgreSQL. The (shot_id, timeline_frame) WHERE timeline_frame IS NOT
// NULL partial unique index is what enforces the partial-uniqueness
// invariant; this repository only has to avoid colliding
// with it mid-batch, which is the timeline engine's job.
type ShotLinkRepository struct {
	db dbtx
}

// NewShotLinkRepository creates a new PostgreSQL shot-link repository.
func NewShotLinkRepository(db *sql.DB) repository.ShotLinkRepository {
	return &ShotLinkRepository{db: db}
}

// WithTx returns a shot-link repository scoped to tx.
func (r *ShotLinkRepository) WithTx(tx *sql.Tx) *ShotLinkRepository {
	return &ShotLinkRepository{db: tx}
}

func scanShotLink(scan func(dest ...any) error) (*entity.ShotLink, error) {
	l := &entity.ShotLink{}
	var rawMeta []byte
	err := scan(&l.ID, &l.ShotID, &l.GenerationID, &l.TimelineFrame, &rawMeta, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(rawMeta) > 0 {
		var m struct {
			UserPositioned bool   `json:"user_positioned"`
			DragSource     string `json:"drag_source"`
			AutoPositioned bool   `json:"auto_positioned"`
		}
		if err := json.Unmarshal(rawMeta, &m); err != nil {
			return nil, fmt.Errorf("decode shot link metadata: %w", err)
		}
		l.Metadata = entity.ShotLinkMetadata{
			UserPositioned: m.UserPositioned,
			DragSource:     m.DragSource,
			AutoPositioned: m.AutoPositioned,
		}
	}
	return l, nil
}

func (r *ShotLinkRepository) Create(ctx context.Context, link *entity.ShotLink) error {
	meta, err := json.Marshal(struct {
		UserPositioned bool   `json:"user_positioned"`
		DragSource     string `json:"drag_source"`
		AutoPositioned bool   `json:"auto_positioned"`
	}{link.Metadata.UserPositioned, link.Metadata.DragSource, link.Metadata.AutoPositioned})
	if err != nil {
		return fmt.Errorf("encode shot link metadata: %w", err)
	}
	query := `
		INSERT INTO shot_links (shot_id, generation_id, timeline_frame, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query, link.ShotID, link.GenerationID, link.TimelineFrame, meta).Scan(&link.ID, &link.CreatedAt)
}

func (r *ShotLinkRepository) ListByShot(ctx context.Context, shotID uuid.UUID) ([]*entity.ShotLink, error) {
	query := `
		SELECT id, shot_id, generation_id, timeline_frame, metadata, created_at
		FROM shot_links
		WHERE shot_id = $1
		ORDER BY timeline_frame ASC NULLS LAST, created_at ASC, generation_id ASC
	`
	return r.queryLinks(ctx, query, shotID)
}

func (r *ShotLinkRepository) ListByGeneration(ctx context.Context, generationID uuid.UUID) ([]*entity.ShotLink, error) {
	query := `
		SELECT id, shot_id, generation_id, timeline_frame, metadata, created_at
		FROM shot_links
		WHERE generation_id = $1
		ORDER BY timeline_frame ASC NULLS LAST, created_at ASC
	`
	return r.queryLinks(ctx, query, generationID)
}

func (r *ShotLinkRepository) queryLinks(ctx context.Context, query string, arg uuid.UUID) ([]*entity.ShotLink, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list shot links: %w", err)
	}
	defer rows.Close()

	var links []*entity.ShotLink
	for rows.Next() {
		l, err := scanShotLink(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan shot link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ClearFrames is stage one of apply_timeline_frames's two-stage update
//: null out every affected link's frame before any new value is
// written, so the partial-unique constraint never sees a transient
// collision.
func (r *ShotLinkRepository) ClearFrames(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE shot_links SET timeline_frame = NULL WHERE id = ANY($1::uuid[])`, pq.Array(uuidsToStrings(ids)))
	if err != nil {
		return fmt.Errorf("clear shot link frames: %w", err)
	}
	return nil
}

func (r *ShotLinkRepository) SetFrame(ctx context.Context, id uuid.UUID, frame *int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE shot_links SET timeline_frame = $2 WHERE id = $1`, id, frame)
	if err != nil {
		return fmt.Errorf("set shot link frame: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set shot link frame: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("shot_link")
	}
	return nil
}
