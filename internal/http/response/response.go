// Package response defines the JSON envelope exchanged with the notes server,
// with decoding for the client and writers for test servers.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 4 << 20

// Envelope is the response structure every endpoint returns.
// Login puts token and user at the top level, profile puts user there,
// invite puts defaultPassword there; everything else uses data.
type Envelope struct {
	Success         bool            `json:"success"`
	Data            json.RawMessage `json:"data,omitempty"`
	Error           string          `json:"error,omitempty"`
	Message         string          `json:"message,omitempty"`
	Token           string          `json:"token,omitempty"`
	User            json.RawMessage `json:"user,omitempty"`
	DefaultPassword string          `json:"defaultPassword,omitempty"`
}

// Decode reads and parses an envelope from r.
func Decode(r io.Reader) (*Envelope, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

// Reason returns the server's literal failure reason, if any.
func (e *Envelope) Reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// DecodeData unmarshals the data member into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(e.Data, v)
}

// DecodeUser unmarshals the user member into v.
func (e *Envelope) DecodeUser(v any) error {
	if len(e.User) == 0 {
		return fmt.Errorf("missing user")
	}
	return json.Unmarshal(e.User, v)
}

// Fields are top-level envelope members written next to "success".
type Fields map[string]any

// JSON writes fields as an envelope. Success is derived from status unless fields sets it.
func JSON(w http.ResponseWriter, status int, fields Fields, logger *slog.Logger) {
	body := make(map[string]any, len(fields)+1)
	body["success"] = status < http.StatusBadRequest
	for k, v := range fields {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Data writes {"success": true, "data": data}.
func Data(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	JSON(w, status, Fields{"data": data}, logger)
}

// OK writes a bare {"success": true} plus any extra fields.
func OK(w http.ResponseWriter, fields Fields, logger *slog.Logger) {
	JSON(w, http.StatusOK, fields, logger)
}

// Error writes {"success": false, "error": message}, whatever the status.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	JSON(w, status, Fields{"success": false, "error": message}, logger)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, message, logger)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, message, logger)
}

// Forbidden writes a 403 Forbidden response.
func Forbidden(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusForbidden, message, logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, message, logger)
}
