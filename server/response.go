package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/logger"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes a JSON request body. Unknown fields are rejected.
func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequestError("invalid request body: %v", err)
	}
	return nil
}

// statusFor maps an error to an HTTP status by its mark
func statusFor(err error) int {
	switch {
	case errors.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.IsInvalidRequestError(err):
		return http.StatusBadRequest
	case errors.IsConflictError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeWrappedError logs server-side failures and writes the error message.
// Client errors are not logged above debug.
func writeWrappedError(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger, err error, context string) {
	status := statusFor(err)
	log = logger.FromContext(r.Context(), log)

	if status >= http.StatusInternalServerError {
		log.Errorw(context, logger.FieldError, err)
		writeError(w, status, context)
		return
	}
	log.Debugw(context, logger.FieldError, err, logger.FieldStatus, status)
	writeError(w, status, err.Error())
}
