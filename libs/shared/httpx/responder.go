package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// JSON writes the provided payload as JSON with the supplied status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes an error response with a standard envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"error": message})
}

// ErrorWithDetails writes an error envelope carrying a list of details,
// e.g. field-level validation messages.
func ErrorWithDetails(w http.ResponseWriter, status int, message string, details []string) {
	if details == nil {
		details = []string{}
	}
	JSON(w, status, map[string]any{"error": message, "details": details})
}

// Data wraps a payload in the {"data": ...} envelope used by every handler.
func Data(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, map[string]any{"data": payload})
}

// DecodeJSON strictly decodes a request body into v.
func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
