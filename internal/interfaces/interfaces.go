package interfaces

import (
	"context"

	"openchat/assistant/internal/model"
	"openchat/assistant/internal/service"
)

// This file defines the contracts the API layer depends on. The service
// package provides the implementations; tests use the generated mocks.

// SessionManager drives the active conversation.
type SessionManager interface {
	Send(ctx context.Context, req service.SendRequest) (<-chan service.Outcome, error)
	Cancel() error
	Reset() error
	NewConversation() error
	RetryCommit(ctx context.Context) error
	SelectGroup(ctx context.Context, groupID string) error
	SelectPrompt(ctx context.Context, promptID string) error
	RenameGroup(ctx context.Context, groupID, name string) error
	DeleteGroup(ctx context.Context, groupID string) error
	PruneEmptyGroups(ctx context.Context) (int, error)
	ClearHistory(ctx context.Context) error
	RunOnce(ctx context.Context, promptID, text string, onDelta func(string)) (string, error)
	Snapshot() model.SessionSnapshot
	Subscribe() (<-chan model.SessionSnapshot, func())
}

// CountsSource publishes the store's row counts.
type CountsSource interface {
	Counts() model.Counts
	Subscribe() (<-chan model.Counts, func())
}

// HistoryService reads stored conversations.
type HistoryService interface {
	Groups(ctx context.Context) ([]model.GroupSummary, error)
	Messages(ctx context.Context, groupID string) ([]model.Message, error)
}

// PromptService manages prompt templates.
type PromptService interface {
	List(ctx context.Context) ([]model.Prompt, error)
	Create(ctx context.Context, title, body string) (*model.Prompt, error)
	Delete(ctx context.Context, id string) error
}

// ModelService lists the models of the current endpoint.
type ModelService interface {
	List(ctx context.Context) ([]string, error)
}

// SettingsService manages accounts and chat preferences.
type SettingsService interface {
	Accounts(ctx context.Context) ([]model.Account, error)
	AddAccount(ctx context.Context, account model.Account) (*model.Account, error)
	UpdateAccount(ctx context.Context, account model.Account) (*model.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	SetCurrent(ctx context.Context, id string) error
	ExportAccount(ctx context.Context, id string) (string, error)
	ImportAccount(ctx context.Context, encoded string) (*model.Account, error)
	TestAccount(ctx context.Context, account model.Account) bool
	HistoryLimit(ctx context.Context) (int, error)
	SetHistoryLimit(ctx context.Context, limit int) error
}

var (
	_ SessionManager  = (*service.SessionManager)(nil)
	_ HistoryService  = (*service.HistoryService)(nil)
	_ PromptService   = (*service.PromptService)(nil)
	_ ModelService    = (*service.ModelService)(nil)
	_ SettingsService = (*service.SettingsService)(nil)
)
