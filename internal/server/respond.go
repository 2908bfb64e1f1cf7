package server

import (
	"errors"
	"net/http"

	"github.com/conceptforge/conceptforge/internal/platform/httpx"
)

// RespondFailure maps the facade failure taxonomy onto RFC7807 problem
// responses.
func RespondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAuthorization):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrIO):
		httpx.Problem(w, http.StatusBadGateway, "Storage Failure", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", err.Error())
	}
}
