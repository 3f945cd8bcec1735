// Package httpapi implements the admission surface: the HTTP boundary
// workers and control-plane callers use to reach the claim,
// count/analysis, transition, and shot-link/timeline engines.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/sogos/mirai-scheduler/internal/domain/apperr"
)

// errResponse is the JSON body rendered for every non-2xx response, in the
// shape render.Render expects a Renderer to produce.
type errResponse struct {
	HTTPStatusCode int    `json:"-"`
	Kind           string `json:"kind"`
	Message        string `json:"message"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// statusFor maps an apperr.Kind to its HTTP status.
func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindPreconditionFailed:
		return http.StatusConflict
	case apperr.KindContention:
		return http.StatusConflict
	case apperr.KindDataIntegrityViolation:
		return http.StatusConflict
	case apperr.KindFatal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// renderError writes err as a JSON error body, translating the apperr
// taxonomy into the matching HTTP status and falling back to 500 for
// anything undecorated.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	status := http.StatusInternalServerError
	kind := "internal"
	if errors.As(err, &ae) {
		status = statusFor(ae.Kind)
		kind = string(ae.Kind)
	}
	_ = render.Render(w, r, &errResponse{HTTPStatusCode: status, Kind: kind, Message: err.Error()})
}

// badRequest renders a plain invalid-input error for request decoding
// failures that never reach an engine (malformed JSON, unparsable UUIDs).
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	renderError(w, r, apperr.InvalidInput("request", err))
}
