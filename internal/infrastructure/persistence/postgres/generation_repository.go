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
	"github.com/sogos/mirai-scheduler/internal/domain/params"
	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// GenerationRepository implements repository.GenerationRepository using
// PostgreSQL.
type GenerationRepository struct {
	db dbtx
}

// NewGenerationRepository creates a new PostgreSQL generation repository.
func NewGenerationRepository(db *sql.DB) repository.GenerationRepository {
	return &GenerationRepository{db: db}
}

// WithTx returns a generation repository scoped to tx, so its writes join
// the caller's transaction (used by the shot-link engine's denormalization
// contract).
func (r *GenerationRepository) WithTx(tx *sql.Tx) *GenerationRepository {
	return &GenerationRepository{db: tx}
}

// encodeShotData marshals ShotFrames to the `shot_identifier -> [frames]`
// object the denormalization contract requires, or nil if the map is
// empty - absence of any links yields a null shot_data.
func encodeShotData(data entity.ShotFrames) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make(map[string][]*int, len(data))
	for shotID, frames := range data {
		out[shotID.String()] = frames
	}
	return json.Marshal(out)
}

func decodeShotData(raw []byte) (entity.ShotFrames, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var decoded map[string][]*int
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	out := make(entity.ShotFrames, len(decoded))
	for shotIDStr, frames := range decoded {
		shotID, err := uuid.Parse(shotIDStr)
		if err != nil {
			continue
		}
		out[shotID] = frames
	}
	return out, nil
}

func (r *GenerationRepository) Create(ctx context.Context, gen *entity.Generation) error {
	rawParams, err := gen.Params.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode generation params: %w", err)
	}
	rawShotData, err := encodeShotData(gen.ShotData)
	if err != nil {
		return fmt.Errorf("encode generation shot_data: %w", err)
	}
	query := `
		INSERT INTO generations (project_id, type, location, thumbnail_url, params, task_ids, shot_data, primary_variant)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		gen.ProjectID, gen.Type.String(), gen.Location, gen.ThumbnailURL, rawParams,
		pq.Array(uuidsToStrings(gen.TaskIDs)), rawShotData, gen.PrimaryVariant,
	).Scan(&gen.ID)
}

func (r *GenerationRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Generation, error) {
	query := `
		SELECT id, project_id, type, location, thumbnail_url, params, task_ids, shot_data, primary_variant
		FROM generations
		WHERE id = $1
	`
	g := &entity.Generation{}
	var typeStr string
	var rawParams, rawShotData []byte
	var taskIDs pq.StringArray
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.ProjectID, &typeStr, &g.Location, &g.ThumbnailURL, &rawParams, &taskIDs, &rawShotData, &g.PrimaryVariant,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("generation")
	}
	if err != nil {
		return nil, fmt.Errorf("get generation by id: %w", err)
	}
	g.Type = valueobject.GenerationType(typeStr)
	p, err := params.ParseSet(rawParams)
	if err != nil {
		return nil, fmt.Errorf("get generation by id: %w", err)
	}
	g.Params = p
	g.TaskIDs = parseUUIDs(taskIDs)
	g.ShotData, err = decodeShotData(rawShotData)
	if err != nil {
		return nil, fmt.Errorf("get generation by id: %w", err)
	}
	return g, nil
}

func (r *GenerationRepository) UpdateShotData(ctx context.Context, id uuid.UUID, data entity.ShotFrames) error {
	raw, err := encodeShotData(data)
	if err != nil {
		return fmt.Errorf("encode generation shot_data: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE generations SET shot_data = $2 WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("update generation shot_data: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update generation shot_data: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("generation")
	}
	return nil
}
