package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "aval/pkg/domain-errors"
)

// WriteJSON writes the response with the given status and a JSON body.
func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// best-effort fallback; don't override status for the caller
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes
// and a consistent JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": domainCodeToHTTPCode(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, domainCodeToHTTPStatus(domainErr.Code), response)
		return
	}

	// Fallback for unexpected errors
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal_error",
	})
}

func domainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeMalformedReference, dErrors.CodeUnknownContext:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeUnknownIssuer:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func domainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest:
		return "bad_request"
	case dErrors.CodeMalformedReference:
		return "malformed_reference"
	case dErrors.CodeUnknownContext:
		return "unknown_context"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeUnknownIssuer:
		return "unknown_issuer"
	default:
		return "internal_error"
	}
}
