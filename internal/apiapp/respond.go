package apiapp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/documents"
	"github.com/elite6108/sitesafe/internal/leave"
	"github.com/elite6108/sitesafe/internal/middleware"
	"github.com/elite6108/sitesafe/internal/pdfgen"
	"github.com/elite6108/sitesafe/internal/storage"
	"github.com/elite6108/sitesafe/internal/store"
)

const maxJSONBody = 1 << 20

// badRequest marks an error whose message is safe to show the caller.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func invalid(msg string) error {
	return &badRequest{msg: msg}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		return invalid("invalid request body")
	}
	return nil
}

// fail maps err onto a status code. Anything unrecognised is logged and
// reported with fallback.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, storage.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, documents.ErrUnknownKind), errors.Is(err, storage.ErrUnknownBucket):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, pdfgen.ErrMissingSettings), errors.Is(err, pdfgen.ErrMissingRecord):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrTooLarge), errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, leave.ErrInsufficientAllowance), errors.Is(err, leave.ErrNoWorkingDays):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error(fallback,
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
