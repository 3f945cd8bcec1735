package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/application/service"
	"github.com/sogos/mirai-scheduler/internal/domain/valueobject"
)

// claimServiceRequest is the JSON body for POST /v1/claim/service.
type claimServiceRequest struct {
	WorkerID      uuid.UUID `json:"worker_id"`
	InstanceClass string    `json:"instance_class"`
	IncludeActive bool      `json:"include_active"`
	RunType       string    `json:"run_type,omitempty"`
	SameModelOnly bool      `json:"same_model_only"`
	CurrentModel  string    `json:"current_model,omitempty"`
}

// parseRunTypeFilter treats an invalid or empty run_type as no filter
// rather than rejecting the request at the admission boundary.
func parseRunTypeFilter(s string) *valueobject.RunType {
	if s == "" {
		return nil
	}
	rt, err := valueobject.ParseRunType(s)
	if err != nil {
		return nil
	}
	return &rt
}

func (h *Handler) claimService(w http.ResponseWriter, r *http.Request) {
	var req claimServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	svcReq := service.ClaimServiceRequest{
		WorkerID:      req.WorkerID,
		InstanceClass: req.InstanceClass,
		IncludeActive: req.IncludeActive,
		RunType:       parseRunTypeFilter(req.RunType),
		SameModelOnly: req.SameModelOnly,
	}
	if req.CurrentModel != "" {
		svcReq.CurrentModel = &req.CurrentModel
	}

	task, err := h.claim.ClaimService(r.Context(), svcReq)
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderClaim(w, r, task)
}

// claimUserRequest is the JSON body for POST /v1/claim/user.
type claimUserRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	IncludeActive bool      `json:"include_active"`
	RunType       string    `json:"run_type,omitempty"`
	BypassCredit  bool      `json:"bypass_credit,omitempty"`
}

func (h *Handler) claimUser(w http.ResponseWriter, r *http.Request) {
	var req claimUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, err)
		return
	}

	task, err := h.claim.ClaimUser(r.Context(), service.ClaimUserRequest{
		UserID:        req.UserID,
		IncludeActive: req.IncludeActive,
		RunType:       parseRunTypeFilter(req.RunType),
		BypassCredit:  req.BypassCredit,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}
	renderClaim(w, r, task)
}
