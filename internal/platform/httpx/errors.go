// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-events/meridian-beo/internal/shared"
)

// RespondError maps workflow errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrTransitionConflict):
		Problem(w, http.StatusConflict, "Transition Conflict", err.Error())
	case errors.Is(err, shared.ErrNotApproved):
		Problem(w, http.StatusConflict, "Not Approved", err.Error())
	case errors.Is(err, shared.ErrNeedsRegeneration):
		Problem(w, http.StatusConflict, "Needs Regeneration", err.Error())
	case errors.Is(err, shared.ErrGenerationFailure):
		Problem(w, http.StatusBadGateway, "Generation Failed", err.Error())
	case errors.Is(err, shared.ErrStorageFailure):
		Problem(w, http.StatusInternalServerError, "Storage Failure", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
