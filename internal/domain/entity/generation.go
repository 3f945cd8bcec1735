package entity

import (
	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/params"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// ShotFrames maps a shot identifier to the sorted (nulls last) list of
// timeline frames at which a generation appears in that shot. Writable
// only by the shot-link engine; every other reader treats it as derived
// data.
type ShotFrames map[uuid.UUID][]*int

// Generation is the materialized output of a completed generation-category
// task. It may outlive the tasks that produced it and be linked into
// any number of shots afterward.
type Generation struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	Type           valueobject.GenerationType
	Location       string
	ThumbnailURL   string
	Params         params.Set
	TaskIDs        []uuid.UUID
	ShotData       ShotFrames
	PrimaryVariant *uuid.UUID
}

// NewGeneration composes a Generation from a completed task; the
// originating task's params are carried forward unmodified.
func NewGeneration(id uuid.UUID, t *Task, genType valueobject.GenerationType, location string) *Generation {
	return &Generation{
		ID:           id,
		ProjectID:    t.ProjectID,
		Type:         genType,
		Location:     location,
		ThumbnailURL: params.ThumbnailURL(t.Params),
		Params:       t.Params.Clone(),
		TaskIDs:      []uuid.UUID{t.ID},
	}
}
