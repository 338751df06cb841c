package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/target/mmk-agent-api/internal/errors"
)

// Error codes written in the "code" field of JSON error bodies.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidJSON    = "invalid_json"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeInternal       = "internal"
)

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, ErrorParams{
				Code:    http.StatusRequestEntityTooLarge,
				ErrCode: ErrCodeInvalidRequest,
				Err:     fmt.Errorf("request body exceeds %d bytes", maxErr.Limit),
			})
			return false
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: ErrCodeInvalidJSON, Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// errorBody carries the human-readable message in "error" and the machine code in "code".
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, errorBody{Error: p.Err.Error(), Code: p.ErrCode})
}

// ErrorStatus maps an application error to an HTTP status and error code.
func ErrorStatus(err error) (int, string) {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// WriteAppError writes err with the status derived from its application error code.
// Messages of unclassified errors are not exposed.
func WriteAppError(w http.ResponseWriter, err error) {
	status, code := ErrorStatus(err)
	if status == http.StatusInternalServerError {
		err = errors.New("internal server error")
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: err})
}
