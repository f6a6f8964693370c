package api

import (
	"errors"
	"net/http"

	"github.com/importly/health-dashboard-backend/internal/apperr"
)

// writeAppError maps a typed apperr.Kind to an HTTP status instead of
// string-matching the error message.
func writeAppError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case apperr.KindNotFound:
			writeError(w, http.StatusNotFound, err.Error())
			return
		case apperr.KindInvalidArgument:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case apperr.KindIO:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
