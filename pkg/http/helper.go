package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
)

// DecodeJSON reads a single JSON document from the request body into v.
// Malformed or empty bodies become InvalidInput.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperrors.InvalidInput("Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("Request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge)
		}
		return apperrors.InvalidInput("Invalid request body")
	}
	return nil
}
