package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
)

func (h *Handler) countEligibleService(w http.ResponseWriter, r *http.Request) {
	includeActive := r.URL.Query().Get("include_active") == "true"
	runType := parseRunTypeFilter(r.URL.Query().Get("run_type"))

	n, err := h.count.CountEligibleService(r.Context(), includeActive, runType)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, countResponse{Count: n})
}

func (h *Handler) countEligibleUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		badRequest(w, r, apperr.InvalidInput("user_id", err))
		return
	}
	includeActive := r.URL.Query().Get("include_active") == "true"
	runType := parseRunTypeFilter(r.URL.Query().Get("run_type"))

	n, err := h.count.CountEligibleUser(r.Context(), userID, includeActive, runType)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, countResponse{Count: n})
}

// breakdownResponse is the 5-tuple rendered by count_breakdown_service:
// one bucket per partition plus the total.
type breakdownResponse struct {
	ClaimableNow      int `json:"claimable_now"`
	BlockedByDeps     int `json:"blocked_by_deps"`
	BlockedByCapacity int `json:"blocked_by_capacity"`
	BlockedBySettings int `json:"blocked_by_settings"`
	Total             int `json:"total"`
}

func (breakdownResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

func (h *Handler) countBreakdownService(w http.ResponseWriter, r *http.Request) {
	runType := parseRunTypeFilter(r.URL.Query().Get("run_type"))

	b, err := h.count.CountBreakdownService(r.Context(), runType)
	if err != nil {
		renderError(w, r, err)
		return
	}
	respond(w, r, breakdownResponse{
		ClaimableNow:      b.ClaimableNow,
		BlockedByDeps:     b.BlockedByDeps,
		BlockedByCapacity: b.BlockedByCapacity,
		BlockedBySettings: b.BlockedBySettings,
		Total:             b.ClaimableNow + b.BlockedByDeps + b.BlockedByCapacity + b.BlockedBySettings,
	})
}

// userStatResponse is one user's standing within analyzeResponse.
type userStatResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Credits     int64     `json:"credits"`
	QueuedCount int       `json:"queued_count"`
	InProgress  int       `json:"in_progress"`
	AllowsCloud bool      `json:"allows_cloud"`
	AtLimit     bool      `json:"at_limit"`
}

type analyzeResponse struct {
	Total           int              `json:"total"`
	Eligible        int              `json:"eligible"`
	RejectionCounts map[string]int   `json:"rejection_counts"`
	PerUser         []userStatResponse `json:"per_user"`
}

func (analyzeResponse) Render(http.ResponseWriter, *http.Request) error { return nil }

func (h *Handler) analyzeService(w http.ResponseWriter, r *http.Request) {
	runType := parseRunTypeFilter(r.URL.Query().Get("run_type"))

	a, err := h.count.AnalyzeService(r.Context(), runType)
	if err != nil {
		renderError(w, r, err)
		return
	}

	resp := analyzeResponse{
		Total:           a.Total,
		Eligible:        a.Eligible,
		RejectionCounts: make(map[string]int, len(a.RejectionCounts)),
		PerUser:         make([]userStatResponse, len(a.PerUser)),
	}
	for reason, count := range a.RejectionCounts {
		resp.RejectionCounts[reason.String()] = count
	}
	for i, u := range a.PerUser {
		resp.PerUser[i] = userStatResponse{
			UserID:      u.UserID,
			Credits:     u.Credits,
			QueuedCount: u.QueuedCount,
			InProgress:  u.InProgress,
			AllowsCloud: u.AllowsCloud,
			AtLimit:     u.AtLimit,
		}
	}
	respond(w, r, resp)
}
