package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/model"
)

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusResponse defines a generic success response for operations that
// don't return a resource.
type StatusResponse struct {
	Status string `json:"status"`
}

// SendMessageRequest is one user turn.
type SendMessageRequest struct {
	Text     string  `json:"text" validate:"required,max=32000" example:"Hello"`
	ImageRef *string `json:"image_ref,omitempty"`
	FileRef  *string `json:"file_ref,omitempty"`
}

// RunOnceRequest applies a template to a text without touching the session.
type RunOnceRequest struct {
	PromptID string `json:"prompt_id"`
	Text     string `json:"text" validate:"required"`
}

// RunOnceResponse carries the completion of a RunOnceRequest.
type RunOnceResponse struct {
	Content string `json:"content"`
}

// SelectGroupRequest makes a stored conversation active.
type SelectGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// SelectPromptRequest selects a template. An empty id clears the selection.
type SelectPromptRequest struct {
	PromptID string `json:"prompt_id"`
}

// RenameGroupRequest is the DTO for renaming a conversation.
type RenameGroupRequest struct {
	Name string `json:"name" validate:"required,max=100" example:"Trip planning"`
}

// PruneResponse reports how many empty conversations were removed.
type PruneResponse struct {
	Removed int `json:"removed"`
}

// CreatePromptRequest is the DTO for a user template.
type CreatePromptRequest struct {
	Title string `json:"title" validate:"required,max=100"`
	Body  string `json:"body" validate:"required"`
}

// AccountRequest is the DTO for adding, updating and testing accounts.
type AccountRequest struct {
	Name    string `json:"name" validate:"max=100"`
	Host    string `json:"host" validate:"required"`
	Path    string `json:"path"`
	Key     string `json:"key" validate:"required"`
	Model   string `json:"model" validate:"required"`
	Current bool   `json:"current"`
}

func (r AccountRequest) account() model.Account {
	return model.Account{
		Name:    r.Name,
		Host:    r.Host,
		Path:    r.Path,
		Key:     r.Key,
		Model:   r.Model,
		Current: r.Current,
	}
}

// ImportAccountRequest carries an exported account.
type ImportAccountRequest struct {
	Data string `json:"data" validate:"required"`
}

// ExportAccountResponse carries an exported account.
type ExportAccountResponse struct {
	Data string `json:"data"`
}

// TestAccountResponse reports whether an endpoint answered.
type TestAccountResponse struct {
	OK bool `json:"ok"`
}

// SettingsResponse is the DTO for chat preferences.
type SettingsResponse struct {
	HistoryLimit int `json:"history_limit"`
}

// UpdateSettingsRequest is the DTO for chat preferences.
type UpdateSettingsRequest struct {
	HistoryLimit *int `json:"history_limit" validate:"required,min=0,max=50"`
}

// StateResponse is the current session state together with the store counts.
type StateResponse struct {
	Session model.SessionSnapshot `json:"session"`
	Counts  model.Counts          `json:"counts"`
}

// OutcomeEvent is the final event of a streamed exchange.
type OutcomeEvent struct {
	State   string         `json:"state"`
	Message model.Message  `json:"message"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// respondWithError maps business-layer errors to HTTP status codes and
// writes a standard JSON error response.
func respondWithError(w http.ResponseWriter, err error) {
	statusCode, message := statusFor(err)

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)

	respondWithJSON(w, statusCode, ErrorResponse{Error: message, Kind: app_errors.Kind(err)})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		return http.StatusNotFound, "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		// Validation messages are already descriptive.
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app_errors.ErrPermission):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, app_errors.ErrBusy), errors.Is(err, app_errors.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app_errors.ErrConfiguration):
		return http.StatusPreconditionFailed, err.Error()
	case errors.Is(err, app_errors.ErrTransport):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "An unexpected internal server error occurred."
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request payload: %w", app_errors.ErrValidation, err)
	}
	return nil
}

func startStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeStreamEvent writes one named SSE event. A write failure means the
// client has gone away.
func writeStreamEvent(w http.ResponseWriter, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal stream data to JSON", "error", err)
		return nil
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
