package controllers

import (
	"net/http"

	"github.com/drewster99/FishIdentifierCam/internal/middleware"
	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

// requireClientVersion enforces the client-version header. Its absence is
// treated as an authorization-adjacent failure (401, not 400) for
// compatibility with shipped clients.
func requireClientVersion(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get(utils.VersionHeaderName) == "" {
		utils.RespondErrorWithCode(
			w, http.StatusUnauthorized, utils.ErrCodeUnauthorized,
			"Unauthorized: Malformed data", nil,
		)
		return false
	}
	return true
}

// requireSubject re-checks that the gate attached a verified subject.
// The middleware guarantees this; an empty subject here means a wiring
// bug, and the caller still must not proceed.
func requireSubject(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject := middleware.SubjectFromRequest(r)
	if subject == "" {
		utils.RespondErrorWithCode(
			w, http.StatusUnauthorized, utils.ErrCodeUnauthorized,
			"Unauthorized: Malformed data", nil,
		)
		return "", false
	}
	return subject, true
}
