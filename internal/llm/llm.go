// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"

	"openchat/assistant/internal/model"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Image is inline image data attached to a user entry.
type Image struct {
	MIME string
	Data []byte
}

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
	Image   *Image `json:"-"`
}

// GenerateRequest is an ordered conversation context. Model is taken from the
// account when empty.
type GenerateRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

// StreamResponse is one event of a streamed completion. Exactly one event
// with Done or Err set terminates a well-formed stream.
type StreamResponse struct {
	Content string
	Done    bool
	Err     error
}

// Provider defines the interface for interacting with a completion endpoint.
// Every call carries the account it is made with; providers hold no endpoint
// state of their own.
type Provider interface {
	// Check performs one small non-streaming completion.
	Check(ctx context.Context, account model.Account) error
	// GenerateStream sends req and forwards deltas to ch, closing ch when done.
	GenerateStream(ctx context.Context, account model.Account, req *GenerateRequest, ch chan<- StreamResponse) error
	// ListModels returns the model identifiers offered by the endpoint.
	ListModels(ctx context.Context, account model.Account) ([]string, error)
}
