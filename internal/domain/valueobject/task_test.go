package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskStatus(t *testing.T) {
	for _, valid := range []string{"queued", "in_progress", "complete", "failed", "cancelled"} {
		s, err := ParseTaskStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, s.String())
	}

	_, err := ParseTaskStatus("done")
	assert.Error(t, err)
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, TaskStatusQueued.IsTerminal())
	assert.False(t, TaskStatusInProgress.IsTerminal())
	assert.True(t, TaskStatusComplete.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
}

func TestParseRunType(t *testing.T) {
	rt, err := ParseRunType("gpu")
	require.NoError(t, err)
	assert.Equal(t, RunTypeGPU, rt)

	rt, err = ParseRunType("api")
	require.NoError(t, err)
	assert.Equal(t, RunTypeAPI, rt)

	_, err = ParseRunType("cpu")
	assert.Error(t, err)
}

func TestGenerationTypeForToolType(t *testing.T) {
	assert.Equal(t, GenerationTypeVideo, GenerationTypeForToolType("travel-between-images"))
	assert.Equal(t, GenerationTypeVideo, GenerationTypeForToolType("edit-travel"))
	assert.Equal(t, GenerationTypeImage, GenerationTypeForToolType("image-gen"))
	assert.Equal(t, GenerationTypeImage, GenerationTypeForToolType(""))
}

func TestParseTaskCategory(t *testing.T) {
	for _, valid := range []string{"generation", "orchestration", "processing", "utility"} {
		c, err := ParseTaskCategory(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, c.String())
	}

	_, err := ParseTaskCategory("misc")
	assert.Error(t, err)
}
