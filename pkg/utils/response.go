package utils

import (
	"encoding/json"
	"net/http"

	"workflow-collab-backend/pkg/apperr"
)

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// WriteJSONResponse writes a JSON envelope with the given status code.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: statusCode >= 200 && statusCode < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteSuccessResponse writes a 200 envelope.
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusOK, data)
}

// WriteCreatedResponse writes a 201 envelope.
func WriteCreatedResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusCreated, data)
}

// WriteMultiStatusResponse writes a 207 envelope for bulk operations whose
// items succeed or fail independently.
func WriteMultiStatusResponse(w http.ResponseWriter, data interface{}) {
	WriteJSONResponse(w, http.StatusMultiStatus, data)
}

// WriteErrorResponse writes an error envelope with a generic code.
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	WriteErrorResponseWithCode(w, statusCode, "ERROR", message, "")
}

// WriteErrorResponseWithCode writes an error envelope.
func WriteErrorResponseWithCode(w http.ResponseWriter, statusCode int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// WriteBadRequestResponse writes a 400 envelope.
func WriteBadRequestResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusBadRequest, "BAD_REQUEST", message, "")
}

// WriteUnauthorizedResponse writes a 401 envelope.
func WriteUnauthorizedResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusUnauthorized, "UNAUTHORIZED", message, "")
}

// WriteNotFoundResponse writes a 404 envelope.
func WriteNotFoundResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusNotFound, "NOT_FOUND", message, "")
}

// WriteInternalServerErrorResponse writes a 500 envelope.
func WriteInternalServerErrorResponse(w http.ResponseWriter, message string) {
	WriteErrorResponseWithCode(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message, "")
}

// WriteAppError maps a service error to an HTTP status and writes the
// error envelope. Unknown error values become a 500 without leaking the
// internal message.
func WriteAppError(w http.ResponseWriter, err error) {
	writeAppError(w, err, false)
}

// WriteMaskedAppError is WriteAppError except authorization denials are
// reported as 404, so callers cannot probe for resources in tenants they
// do not belong to.
func WriteMaskedAppError(w http.ResponseWriter, err error) {
	writeAppError(w, err, true)
}

func writeAppError(w http.ResponseWriter, err error, maskForbidden bool) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()

	if maskForbidden && kind == apperr.KindForbidden {
		kind = apperr.KindNotFound
		status = http.StatusNotFound
		message = "resource not found"
	}
	if kind == apperr.KindInternal || kind == apperr.KindStorageFailure {
		message = "internal server error"
	}

	WriteErrorResponseWithCode(w, status, string(kind), message, "")
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInvalidStateTransition, apperr.KindAlreadyResolved, apperr.KindDuplicateInvitation:
		return http.StatusConflict
	case apperr.KindExpired:
		return http.StatusGone
	case apperr.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ParseJSONBody decodes the request body into v.
func ParseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
