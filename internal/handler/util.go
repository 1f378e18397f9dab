package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/middleware"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
)

const maxBodyBytes = 4 << 20

type errorResponse struct {
	Success bool               `json:"success"`
	Error   string             `json:"error"`
	Details []model.FieldError `json:"details,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError translates a service error into a status and error body.
// Failures are logged with the request's correlation and user ids.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	log = log.WithRequest(middleware.GetCorrelationID(r.Context()), middleware.GetUserID(r.Context()))
	var (
		verr *model.ValidationError
		perr *model.ProviderError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Details})
	case errors.Is(err, model.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.As(err, &perr):
		log.Warn("provider request failed", zap.String("provider", perr.Provider), zap.Error(err))
		writeError(w, http.StatusInternalServerError, perr.Error())
	case errors.Is(err, model.ErrCorruptRecord):
		log.Error("corrupt conversation record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "conversation record is corrupt")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.NewValidationError("body", "request body is required")
		}
		return model.NewValidationError("body", "invalid request body")
	}
	return nil
}
