package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/params"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

type transitionFixture struct {
	engine   *TransitionEngine
	tasks    *memTaskRepo
	gens     *memGenerationRepo
	notifier *recordingNotifier
}

func newTransitionFixture(t *testing.T) transitionFixture {
	t.Helper()
	tasks := newMemTaskRepo()
	links := newMemShotLinkRepo()
	gens := newMemGenerationRepo()
	taskTypes := newMemTaskTypeRepo(
		generationTaskType("image_generation", "image-gen"),
		&entity.TaskType{Name: "upscale", RunType: valueobject.RunTypeAPI, Category: valueobject.TaskCategoryProcessing, IsActive: true},
	)
	shotLinks := NewShotLinkEngine(&memTransactor{links: links, gens: gens})
	completion := NewCompletionEngine(tasks, taskTypes, gens, shotLinks, IdentityNormalizer{}, nopLogger{})
	notifier := &recordingNotifier{}
	engine := NewTransitionEngine(tasks, taskTypes, completion, notifier, nopLogger{})
	return transitionFixture{engine: engine, tasks: tasks, gens: gens, notifier: notifier}
}

func inProgressTask(taskType string) *entity.Task {
	return &entity.Task{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		TaskType:  taskType,
		Params:    params.Set{},
		Status:    valueobject.TaskStatusInProgress,
	}
}

func TestMarkCompleteMaterializesAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture(t)

	task := inProgressTask("image_generation")
	require.NoError(t, f.tasks.Create(ctx, task))

	ok, err := f.engine.MarkComplete(ctx, task.ID, "s3://bucket/out.png")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, valueobject.TaskStatusComplete, task.Status)
	require.NotNil(t, task.OutputLocation)
	assert.Equal(t, "s3://bucket/out.png", *task.OutputLocation)
	assert.NotNil(t, task.GenerationProcessedAt)
	assert.Equal(t, 1, f.gens.count())
	assert.True(t, task.GenerationCreated)
	assert.Equal(t, []valueobject.RunType{valueobject.RunTypeGPU}, f.notifier.calls)
}

func TestMarkCompleteNotifiesTaskTypeRunType(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture(t)

	task := inProgressTask("upscale")
	require.NoError(t, f.tasks.Create(ctx, task))

	ok, err := f.engine.MarkComplete(ctx, task.ID, "s3://bucket/out.png")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []valueobject.RunType{valueobject.RunTypeAPI}, f.notifier.calls)
	assert.Equal(t, 0, f.gens.count(), "processing category never materializes")
}

func TestMarkCompleteOnTerminalTaskIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture(t)

	task := inProgressTask("image_generation")
	task.Status = valueobject.TaskStatusFailed
	require.NoError(t, f.tasks.Create(ctx, task))

	ok, err := f.engine.MarkComplete(ctx, task.ID, "s3://bucket/out.png")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, f.gens.count())
	assert.Empty(t, f.notifier.calls)
}

func TestMarkCompleteMissingTask(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture(t)

	ok, err := f.engine.MarkComplete(ctx, uuid.New(), "s3://bucket/out.png")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkFailed(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture(t)

	task := inProgressTask("image_generation")
	require.NoError(t, f.tasks.Create(ctx, task))

	ok, err := f.engine.MarkFailed(ctx, task.ID, "OOM on worker")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, valueobject.TaskStatusFailed, task.Status)
	require.NotNil(t, task.ErrorMessage)
	assert.Equal(t, "OOM on worker", *task.ErrorMessage)
	assert.Equal(t, 0, f.gens.count())
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newTransitionFixture(t)

	task := inProgressTask("image_generation")
	require.NoError(t, f.tasks.Create(ctx, task))

	ok, err := f.engine.UpdateStatus(ctx, task.ID, valueobject.TaskStatusCancelled, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, valueobject.TaskStatusCancelled, task.Status)

	ok, err = f.engine.UpdateStatus(ctx, task.ID, valueobject.TaskStatusQueued, nil)
	require.NoError(t, err)
	assert.False(t, ok, "terminal tasks never transition again")
	assert.Equal(t, 0, f.gens.count(), "update_status has no completion side effect")
}
