package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultGroupName is the placeholder name of a conversation that has not been renamed.
const DefaultGroupName = "New Chat"

// Group is a single conversation thread.
type Group struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Origin    string    `json:"origin"`
}

// NewGroup returns a group with a fresh identity. A blank name falls back to
// DefaultGroupName.
func NewGroup(name, origin string) Group {
	if name == "" {
		name = DefaultGroupName
	}
	return Group{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Name:      name,
		Origin:    origin,
	}
}

// GroupSummary is a group together with its message count, used for listings.
type GroupSummary struct {
	Group
	MessageCount int `json:"message_count"`
}

// Message is one user request and the assistant response to it.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	GroupID   string    `json:"group_id"`
	Request   string    `json:"request"`
	Content   string    `json:"content"`
	ImageRef  *string   `json:"image_ref,omitempty"`
	FileRef   *string   `json:"file_ref,omitempty"`
}

// NewMessage returns a blank in-progress message with a fresh identity.
func NewMessage() Message {
	return Message{ID: uuid.NewString(), Timestamp: time.Now().UTC()}
}

// Reset returns a fresh blank instance. No identity is reused.
func (m Message) Reset() Message {
	return NewMessage()
}

// Prompt is a reusable system instruction.
type Prompt struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	BuiltIn   bool      `json:"built_in"`
}

// Account is one completion endpoint together with its credential.
type Account struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Host      string    `json:"host" validate:"required"`
	Path      string    `json:"path"`
	Key       string    `json:"key" validate:"required"`
	Model     string    `json:"model" validate:"required"`
	Current   bool      `json:"current"`
}

// SameEndpoint reports whether two accounts point at the same endpoint with
// the same credential and model.
func (a Account) SameEndpoint(b Account) bool {
	return a.Host == b.Host && a.Path == b.Path && a.Model == b.Model && a.Key == b.Key
}

// Counts is the reactive aggregate over the persisted tables.
type Counts struct {
	Groups   int `json:"groups"`
	Messages int `json:"messages"`
	Prompts  int `json:"prompts"`
}

// SessionError is the terminal error shown to the user.
type SessionError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionSnapshot is the state published upward by the session manager.
type SessionSnapshot struct {
	Loading  bool          `json:"loading"`
	State    string        `json:"state"`
	Message  Message       `json:"message"`
	Group    *Group        `json:"group,omitempty"`
	PromptID string        `json:"prompt_id,omitempty"`
	Err      *SessionError `json:"error,omitempty"`
}
