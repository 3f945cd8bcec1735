package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sogos/mirai-scheduler/internal/domain/repository"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// AnalysisRepository implements repository.AnalysisRepository using
// PostgreSQL via sqlx, whose StructScan keeps the wide per-task/per-user
// analysis rows below from turning into a wall of positional Scan args.
type AnalysisRepository struct {
	x *sqlx.DB
}

// NewAnalysisRepository creates a new PostgreSQL analysis repository.
func NewAnalysisRepository(x *sqlx.DB) repository.AnalysisRepository {
	return &AnalysisRepository{x: x}
}

// analysisRowScan mirrors repository.AnalysisRow with db struct tags for
// sqlx.StructScan.
type analysisRowScan struct {
	TaskID               string `db:"task_id"`
	UserID               string `db:"user_id"`
	Credits              int64  `db:"credits"`
	AllowsCloud          bool   `db:"allows_cloud"`
	AllowsLocal          bool   `db:"allows_local"`
	RunType              string `db:"run_type"`
	IsOrchestratorType   bool   `db:"is_orchestrator_type"`
	DependencySatisfied  bool   `db:"dependency_satisfied"`
	InProgressCount      int    `db:"in_progress_count"`
	CloudInProgressCount int    `db:"cloud_in_progress_count"`
}

const listQueuedAnalysisRowsQuery = `
	SELECT
		t.id AS task_id,
		p.user_id AS user_id,
		u.credits AS credits,
		u.allows_cloud AS allows_cloud,
		u.allows_local AS allows_local,
		tt.run_type AS run_type,
		(t.task_type LIKE '%orchestrator%') AS is_orchestrator_type,
		` + dependencySatisfiedPredicate + ` AS dependency_satisfied,
		(
			SELECT count(*) FROM tasks it
			JOIN projects ip ON ip.id = it.project_id
			WHERE it.status = 'in_progress' AND it.task_type NOT LIKE '%orchestrator%' AND ip.user_id = p.user_id
		) AS in_progress_count,
		(
			SELECT count(*) FROM tasks it
			JOIN projects ip ON ip.id = it.project_id
			WHERE it.status = 'in_progress' AND it.task_type NOT LIKE '%orchestrator%'
			  AND ip.user_id = p.user_id AND it.worker_id IS NOT NULL
		) AS cloud_in_progress_count
	FROM tasks t
	JOIN projects p ON p.id = t.project_id
	JOIN users u ON u.id = p.user_id
	JOIN task_types tt ON tt.name = t.task_type
	WHERE t.status = 'queued' AND tt.is_active
`

func (r *AnalysisRepository) ListQueuedAnalysisRows(ctx context.Context) ([]repository.AnalysisRow, error) {
	var scans []analysisRowScan
	if err := r.x.SelectContext(ctx, &scans, listQueuedAnalysisRowsQuery); err != nil {
		return nil, fmt.Errorf("list queued analysis rows: %w", err)
	}

	rows := make([]repository.AnalysisRow, 0, len(scans))
	for _, s := range scans {
		row, err := s.toDomain()
		if err != nil {
			return nil, fmt.Errorf("list queued analysis rows: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s analysisRowScan) toDomain() (repository.AnalysisRow, error) {
	taskID, err := parseUUID(s.TaskID)
	if err != nil {
		return repository.AnalysisRow{}, err
	}
	userID, err := parseUUID(s.UserID)
	if err != nil {
		return repository.AnalysisRow{}, err
	}
	runType, _ := valueobject.ParseRunType(s.RunType)
	return repository.AnalysisRow{
		TaskID:               taskID,
		UserID:               userID,
		Credits:              s.Credits,
		AllowsCloud:          s.AllowsCloud,
		AllowsLocal:          s.AllowsLocal,
		RunType:              runType,
		IsOrchestratorType:   s.IsOrchestratorType,
		DependencySatisfied:  s.DependencySatisfied,
		InProgressCount:      s.InProgressCount,
		CloudInProgressCount: s.CloudInProgressCount,
	}, nil
}

type userEligibilityScan struct {
	UserID               string `db:"user_id"`
	Credits              int64  `db:"credits"`
	AllowsCloud          bool   `db:"allows_cloud"`
	AllowsLocal          bool   `db:"allows_local"`
	InProgressCount      int    `db:"in_progress_count"`
	CloudInProgressCount int    `db:"cloud_in_progress_count"`
}

const listEligibleUsersQuery = `
	SELECT
		u.id AS user_id,
		u.credits AS credits,
		u.allows_cloud AS allows_cloud,
		u.allows_local AS allows_local,
		(
			SELECT count(*) FROM tasks it
			JOIN projects ip ON ip.id = it.project_id
			WHERE it.status = 'in_progress' AND it.task_type NOT LIKE '%orchestrator%' AND ip.user_id = u.id
		) AS in_progress_count,
		(
			SELECT count(*) FROM tasks it
			JOIN projects ip ON ip.id = it.project_id
			WHERE it.status = 'in_progress' AND it.task_type NOT LIKE '%orchestrator%'
			  AND ip.user_id = u.id AND it.worker_id IS NOT NULL
		) AS cloud_in_progress_count
	FROM users u
	WHERE u.credits > 0 AND (CASE WHEN $1 THEN u.allows_cloud ELSE u.allows_local END)
`

func (r *AnalysisRepository) ListEligibleUsers(ctx context.Context, serviceMode bool) ([]repository.UserEligibility, error) {
	var scans []userEligibilityScan
	if err := r.x.SelectContext(ctx, &scans, listEligibleUsersQuery, serviceMode); err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}

	out := make([]repository.UserEligibility, 0, len(scans))
	for _, s := range scans {
		userID, err := parseUUID(s.UserID)
		if err != nil {
			return nil, fmt.Errorf("list eligible users: %w", err)
		}
		out = append(out, repository.UserEligibility{
			UserID:               userID,
			Credits:              s.Credits,
			AllowsCloud:          s.AllowsCloud,
			AllowsLocal:          s.AllowsLocal,
			InProgressCount:      s.InProgressCount,
			CloudInProgressCount: s.CloudInProgressCount,
		})
	}
	return out, nil
}
