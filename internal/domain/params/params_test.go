package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSet(t *testing.T) {
	t.Run("empty payload yields empty set", func(t *testing.T) {
		s, err := ParseSet(nil)
		require.NoError(t, err)
		assert.NotNil(t, s)
		assert.Empty(t, s)
	})

	t.Run("json null yields empty set", func(t *testing.T) {
		s, err := ParseSet([]byte("null"))
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("malformed payload errors", func(t *testing.T) {
		_, err := ParseSet([]byte("{nope"))
		assert.Error(t, err)
	})
}

func TestMarshalJSONNilSet(t *testing.T) {
	var s Set
	raw, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))
}

func TestShotIDPrecedence(t *testing.T) {
	tests := []struct {
		name string
		set  Set
		want string
	}{
		{
			name: "originalParams wins over everything",
			set: Set{
				"originalParams": map[string]any{
					"orchestrator_details": map[string]any{"shot_id": "from-original"},
				},
				"orchestrator_details": map[string]any{"shot_id": "from-details"},
				"shot_id":              "top-level",
			},
			want: "from-original",
		},
		{
			name: "orchestrator_details over payload",
			set: Set{
				"orchestrator_details":      map[string]any{"shot_id": "from-details"},
				"full_orchestrator_payload": map[string]any{"shot_id": "from-payload"},
			},
			want: "from-details",
		},
		{
			name: "full_orchestrator_payload over top-level",
			set: Set{
				"full_orchestrator_payload": map[string]any{"shot_id": "from-payload"},
				"shot_id":                   "top-level",
			},
			want: "from-payload",
		},
		{
			name: "snake_case top-level over camelCase alias",
			set:  Set{"shot_id": "snake", "shotId": "camel"},
			want: "snake",
		},
		{
			name: "camelCase alias alone",
			set:  Set{"shotId": "camel"},
			want: "camel",
		},
		{
			name: "absent",
			set:  Set{},
			want: "",
		},
		{
			name: "malformed non-string treated as absent",
			set:  Set{"shot_id": 42},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShotID(tt.set))
		})
	}
}

func TestAddInPosition(t *testing.T) {
	assert.False(t, AddInPosition(Set{}))
	assert.False(t, AddInPosition(Set{"add_in_position": "yes"}), "non-bool is false")
	assert.True(t, AddInPosition(Set{"add_in_position": true}))
	assert.True(t, AddInPosition(Set{
		"orchestrator_details": map[string]any{"add_in_position": true},
	}))
	assert.False(t, AddInPosition(Set{
		"originalParams":       map[string]any{"orchestrator_details": map[string]any{"add_in_position": false}},
		"orchestrator_details": map[string]any{"add_in_position": true},
	}), "higher-precedence false shadows lower true")
}

func TestThumbnailURL(t *testing.T) {
	assert.Equal(t, "", ThumbnailURL(Set{}))
	assert.Equal(t, "https://cdn/a.jpg", ThumbnailURL(Set{"thumbnail_url": "https://cdn/a.jpg"}))
	assert.Equal(t, "https://cdn/b.jpg", ThumbnailURL(Set{"thumbnailUrl": "https://cdn/b.jpg"}))
	assert.Equal(t, "https://cdn/c.jpg", ThumbnailURL(Set{
		"orchestrator_details": map[string]any{"thumbnail_url": "https://cdn/c.jpg"},
		"thumbnailUrl":         "https://cdn/b.jpg",
	}))
}

func TestModelSelector(t *testing.T) {
	assert.Equal(t, "flux-pro", ModelSelector(Set{"model": "flux-pro"}))
	assert.Equal(t, "", ModelSelector(Set{}))
	assert.Equal(t, "", ModelSelector(Set{"model": 3}))
}

func TestCloneDoesNotAliasTopLevel(t *testing.T) {
	orig := Set{"a": 1}
	clone := orig.Clone()
	clone["b"] = 2
	_, ok := orig["b"]
	assert.False(t, ok)
}
