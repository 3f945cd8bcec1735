package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

func taskIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "taskID"))
}

type markCompleteRequest struct {
	OutputLocation string `json:"output_location"`
}

func (h *Handler) markComplete(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("task_id", err))
		return
	}
	var req markCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	ok, err := h.transition.MarkComplete(r.Context(), taskID, req.OutputLocation)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, okResponse{OK: ok})
}

type markFailedRequest struct {
	Error string `json:"error"`
}

func (h *Handler) markFailed(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("task_id", err))
		return
	}
	var req markFailedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	ok, err := h.transition.MarkFailed(r.Context(), taskID, req.Error)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, okResponse{OK: ok})
}

type updateStatusRequest struct {
	Status         string  `json:"status"`
	OutputLocation *string `json:"output_location,omitempty"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := taskIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("task_id", err))
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}
	status, err := valueobject.ParseTaskStatus(req.Status)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("status", err))
		return
	}

	ok, err := h.transition.UpdateStatus(r.Context(), taskID, status, req.OutputLocation)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, okResponse{OK: ok})
}
