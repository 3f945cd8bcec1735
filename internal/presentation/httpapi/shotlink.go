package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/application/service"
	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
)

func shotIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "shotID"))
}

type addGenerationToShotRequest struct {
	GenerationID uuid.UUID `json:"generation_id"`
	WithPosition bool      `json:"with_position"`
}

func (h *Handler) addGenerationToShot(w http.ResponseWriter, r *http.Request) {
	shotID, err := shotIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("shot_id", err))
		return
	}
	var req addGenerationToShotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	link, err := h.shotLinks.AddGenerationToShot(r.Context(), shotID, req.GenerationID, req.WithPosition)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, newShotLinkResponse(link))
}

func (h *Handler) positionExistingGeneration(w http.ResponseWriter, r *http.Request) {
	shotID, err := shotIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("shot_id", err))
		return
	}
	generationID, err := uuid.Parse(chi.URLParam(r, "generationID"))
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("generation_id", err))
		return
	}

	if err := h.shotLinks.PositionExistingGenerationInShot(r.Context(), shotID, generationID); err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, okResponse{OK: true})
}

type frameChangeRequest struct {
	GenerationID uuid.UUID `json:"generation_id"`
	Frame        int       `json:"frame"`
}

type applyTimelineFramesRequest struct {
	Changes []frameChangeRequest `json:"changes"`
}

func (h *Handler) applyTimelineFrames(w http.ResponseWriter, r *http.Request) {
	shotID, err := shotIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("shot_id", err))
		return
	}
	var req applyTimelineFramesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	changes := make([]service.FrameChange, len(req.Changes))
	for i, c := range req.Changes {
		changes[i] = service.FrameChange{GenerationID: c.GenerationID, Frame: c.Frame}
	}

	links, err := h.shotLinks.ApplyTimelineFrames(r.Context(), shotID, changes)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, newShotLinkListResponse(links))
}

type exchangeTimelineFramesRequest struct {
	LinkA uuid.UUID `json:"link_a"`
	LinkB uuid.UUID `json:"link_b"`
}

func (h *Handler) exchangeTimelineFrames(w http.ResponseWriter, r *http.Request) {
	shotID, err := shotIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("shot_id", err))
		return
	}
	var req exchangeTimelineFramesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	if err := h.shotLinks.ExchangeTimelineFrames(r.Context(), shotID, req.LinkA, req.LinkB); err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, okResponse{OK: true})
}

type initializeTimelineFramesRequest struct {
	Spacing int `json:"spacing"`
}

func (h *Handler) initializeTimelineFrames(w http.ResponseWriter, r *http.Request) {
	shotID, err := shotIDParam(r)
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("shot_id", err))
		return
	}
	var req initializeTimelineFramesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	if err := h.shotLinks.InitializeTimelineFramesForShot(r.Context(), shotID, req.Spacing); err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, okResponse{OK: true})
}
