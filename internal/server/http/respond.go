package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/and161185/winecellar/internal/auth"
	"github.com/and161185/winecellar/internal/errs"
	"go.uber.org/zap"
)

const (
	msgBadCredentials = "Could not validate credentials"
	msgBadLogin       = "Incorrect username or password"
	msgForbidden      = "Not enough permissions"
	msgInactive       = "Inactive user"
	msgRateLimited    = "Too many login attempts"
)

type detailBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailBody{Detail: detail})
}

// writeUnauthorized answers 401 with a Bearer challenge naming required scopes.
func writeUnauthorized(w http.ResponseWriter, detail string, scopes []auth.Scope) {
	challenge := "Bearer"
	if len(scopes) > 0 {
		challenge = fmt.Sprintf("Bearer scope=%q", auth.JoinScopes(scopes))
	}
	w.Header().Set("WWW-Authenticate", challenge)
	writeDetail(w, http.StatusUnauthorized, detail)
}

// writeError maps domain sentinels to HTTP responses. Unclassified errors are
// logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		writeUnauthorized(w, msgBadCredentials, nil)
	case errors.Is(err, errs.ErrForbidden):
		writeUnauthorized(w, msgForbidden, nil)
	case errors.Is(err, errs.ErrInactive):
		writeDetail(w, http.StatusBadRequest, msgInactive)
	case errors.Is(err, errs.ErrRateLimited):
		writeDetail(w, http.StatusTooManyRequests, msgRateLimited)
	case errors.Is(err, errs.ErrNotFound):
		writeDetail(w, http.StatusNotFound, sentence(err))
	case errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrStorageNotEmpty),
		errors.Is(err, errs.ErrInsufficientQuantity),
		errors.Is(err, errs.ErrValidation):
		writeDetail(w, http.StatusBadRequest, sentence(err))
	default:
		s.log.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromCtx(r.Context())),
		)
		writeDetail(w, http.StatusInternalServerError, "internal")
	}
}

// sentence capitalizes the first letter of a wrapped error chain.
func sentence(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// decodeJSON reads a JSON body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed JSON body: %v: %w", err, errs.ErrValidation)
	}
	return nil
}
