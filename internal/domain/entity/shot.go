package entity

import (
	"time"

	"github.com/google/uuid"
)

// Shot is a timeline container that generations get positioned into via
// shot-links. Settings is free-form, consumed only by timeline tools
// outside the scheduler's concern.
type Shot struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	Settings  map[string]any
}

// ShotLinkMetadata carries the position-provenance tags on a link. All
// three are optional annotations; none of them participate in the
// uniqueness invariant.
type ShotLinkMetadata struct {
	UserPositioned bool
	DragSource     string
	AutoPositioned bool
}

// ShotLink associates a generation with a shot at an optional timeline
// frame. Duplicates (same shot+generation, different links) are permitted
// and meaningful: a generation may appear more than once in a shot.
type ShotLink struct {
	ID            uuid.UUID
	ShotID        uuid.UUID
	GenerationID  uuid.UUID
	TimelineFrame *int
	Metadata      ShotLinkMetadata
	CreatedAt     time.Time
}

// FrameSpacing is the default gap between successive timeline frames
// assigned by AddGenerationToShot and InitializeTimelineFramesForShot.
const FrameSpacing = 50
