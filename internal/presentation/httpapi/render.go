package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/entity"
	"github.com/sogos/mirai-scheduler/internal/domain/params"
)

// taskResponse is the wire shape of a claimed task. User is reachable only
// transitively through project ownership, which the admission surface
// leaves to its callers, so only ProjectID is carried here.
type taskResponse struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	TaskType  string     `json:"task_type"`
	Params    params.Set `json:"params"`
	Status    string     `json:"status"`
	WorkerID  *uuid.UUID `json:"worker_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (taskResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

func newTaskResponse(t *entity.Task) *taskResponse {
	return &taskResponse{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		TaskType:  t.TaskType,
		Params:    t.Params,
		Status:    t.Status.String(),
		WorkerID:  t.WorkerID,
		CreatedAt: t.CreatedAt,
	}
}

// emptyTaskResponse is rendered for an empty claim result: no eligible
// candidate, or a racing worker claimed it first.
type emptyTaskResponse struct {
	Task *taskResponse `json:"task"`
}

func (emptyTaskResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

func renderClaim(w http.ResponseWriter, r *http.Request, t *entity.Task) {
	if t == nil {
		respond(w, r, emptyTaskResponse{})
		return
	}
	respond(w, r, emptyTaskResponse{Task: newTaskResponse(t)})
}

// shotLinkResponse is the wire shape of a shot-link record.
type shotLinkResponse struct {
	ID            uuid.UUID `json:"id"`
	ShotID        uuid.UUID `json:"shot_id"`
	GenerationID  uuid.UUID `json:"generation_id"`
	TimelineFrame *int      `json:"timeline_frame"`
}

func (shotLinkResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

func newShotLinkResponse(l *entity.ShotLink) shotLinkResponse {
	return shotLinkResponse{ID: l.ID, ShotID: l.ShotID, GenerationID: l.GenerationID, TimelineFrame: l.TimelineFrame}
}

type shotLinkListResponse struct {
	Links []shotLinkResponse `json:"links"`
}

func (shotLinkListResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

func newShotLinkListResponse(links []*entity.ShotLink) shotLinkListResponse {
	out := make([]shotLinkResponse, len(links))
	for i, l := range links {
		out[i] = newShotLinkResponse(l)
	}
	return shotLinkListResponse{Links: out}
}

type countResponse struct {
	Count int `json:"count"`
}

func (countResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

type okResponse struct {
	OK bool `json:"ok"`
}

func (okResponse) Render(http.ResponseWriter, *http.Request) error { return nil }
