package httpx

import (
	"errors"
	"net/http"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/shared"
)

// ErrBadRequest marks a request that could not be decoded.
var ErrBadRequest = errors.New("bad request")

// Unauthorized sends a 401 problem with a bearer challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="sections-api"`)
	Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// RespondError maps domain errors to HTTP responses using RFC7807. Unmapped
// errors become a 500 without detail.
func RespondError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		writeProblem(w, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Errors: verr.Fields,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusBadRequest, "Invalid Credentials", "current password is incorrect")
	case errors.Is(err, authority.ErrInvalidCredentials):
		Unauthorized(w, "incorrect email or password")
	case errors.Is(err, authority.ErrTokenExpired):
		Unauthorized(w, "token expired")
	case errors.Is(err, authority.ErrTokenRevoked):
		Unauthorized(w, "token revoked")
	case errors.Is(err, authority.ErrMalformedToken):
		Unauthorized(w, "could not validate credentials")
	case errors.Is(err, authority.ErrAuthorizationDenied):
		Problem(w, http.StatusForbidden, "Forbidden", "not enough permissions")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusFor returns the status RespondError would write for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBadRequest), errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, authority.ErrInvalidCredentials), errors.Is(err, authority.ErrTokenExpired),
		errors.Is(err, authority.ErrTokenRevoked), errors.Is(err, authority.ErrMalformedToken):
		return http.StatusUnauthorized
	case errors.Is(err, authority.ErrAuthorizationDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
