package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

var taskColumnList = []string{
	"id", "project_id", "task_type", "params", "status", "dependant_on", "output_location", "worker_id",
	"created_at", "generation_started_at", "generation_processed_at", "generation_created", "error_message",
}

func newTaskRepoMock(t *testing.T) (*TaskRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &TaskRepository{db: db}, mock
}

func TestTaskRepositoryGetByID(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	taskID := uuid.New()
	projectID := uuid.New()
	depID := uuid.New()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id = \\$1").
		WithArgs(taskID).
		WillReturnRows(sqlmock.NewRows(taskColumnList).AddRow(
			taskID.String(), projectID.String(), "image_generation", []byte(`{"model":"flux-pro"}`), "queued",
			"{"+depID.String()+"}", nil, nil, created, nil, nil, false, nil,
		))

	task, err := repo.GetByID(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, projectID, task.ProjectID)
	assert.Equal(t, valueobject.TaskStatusQueued, task.Status)
	assert.Equal(t, "flux-pro", task.Params["model"])
	assert.Equal(t, []uuid.UUID{depID}, task.DependantOn)
	assert.Nil(t, task.WorkerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	taskID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id = \\$1").
		WithArgs(taskID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), taskID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

// Contention and an empty queue look identical to the caller: nil task, nil
// error.
func TestClaimServiceModeEmptyResult(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	worker := &entity.Worker{ID: uuid.New()}
	mock.ExpectQuery("UPDATE tasks").
		WillReturnError(sql.ErrNoRows)

	task, err := repo.ClaimServiceMode(context.Background(), worker, nil, false)
	require.NoError(t, err)
	assert.Nil(t, task)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimUserModeEmptyResult(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	mock.ExpectQuery("UPDATE tasks").
		WillReturnError(sql.ErrNoRows)

	task, err := repo.ClaimUserMode(context.Background(), uuid.New(), nil, true)
	require.NoError(t, err)
	assert.Nil(t, task)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusGuardsTerminalRows(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	taskID := uuid.New()
	out := "s3://bucket/out.png"

	mock.ExpectExec("UPDATE tasks").
		WithArgs(taskID, "complete", &out, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatus(context.Background(), taskID, valueobject.TaskStatusComplete, &out, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second attempt: the status guard matches no rows.
	mock.ExpectExec("UPDATE tasks").
		WithArgs(taskID, "complete", &out, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.UpdateStatus(context.Background(), taskID, valueobject.TaskStatusComplete, &out, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkGenerationCreatedLatch(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	taskID := uuid.New()

	mock.ExpectExec("UPDATE tasks").
		WithArgs(taskID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.MarkGenerationCreated(context.Background(), taskID)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE tasks").
		WithArgs(taskID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.MarkGenerationCreated(context.Background(), taskID)
	require.NoError(t, err)
	assert.False(t, ok, "latch flips exactly once")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDsEmptyInput(t *testing.T) {
	repo, _ := newTaskRepoMock(t)

	tasks, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, tasks)
}
