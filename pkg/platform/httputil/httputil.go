// Package httputil centralizes JSON response writing and request decoding for
// HTTP handlers. Error bodies follow the {"error", "error_description"} shape;
// internal errors deliberately omit the description so store and infrastructure
// details never leak to clients.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "trialgate/pkg/domain-errors"
)

// statusByCode maps domain error codes to HTTP status lines.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:           http.StatusBadRequest,
	dErrors.CodeValidation:           http.StatusBadRequest,
	dErrors.CodeInvalidInput:         http.StatusBadRequest,
	dErrors.CodeInvalidState:         http.StatusBadRequest,
	dErrors.CodeAlreadyUnblinded:     http.StatusBadRequest,
	dErrors.CodeInvalidConfiguration: http.StatusBadRequest,
	dErrors.CodeCapacityExceeded:     http.StatusBadRequest,
	dErrors.CodeUnauthorized:         http.StatusUnauthorized,
	dErrors.CodeForbidden:            http.StatusForbidden,
	dErrors.CodeNotFound:             http.StatusNotFound,
	dErrors.CodeConflict:             http.StatusConflict,
	dErrors.CodeTimeout:              http.StatusGatewayTimeout,
	dErrors.CodeInvariantViolation:   http.StatusInternalServerError,
	dErrors.CodeInternal:             http.StatusInternalServerError,
	// Exhausting code generation is a server-side condition; callers may retry.
	dErrors.CodeCodeExhausted: http.StatusInternalServerError,
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into an HTTP error response. Domain errors map to
// their status line; anything untyped is treated as internal. 5xx responses
// carry only the code, never the message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError {
		var dErr *dErrors.Error
		if errors.As(err, &dErr) && dErr.Message != "" {
			body["error_description"] = dErr.Message
		}
	}

	WriteJSON(w, status, body)
}

// Validatable is implemented by request types that validate and parse
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the request body into T, runs its Validate method,
// and writes the error response on failure. Returns ok=false when the handler
// should stop.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	req := PT(new(T))
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
