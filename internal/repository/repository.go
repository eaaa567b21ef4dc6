package repository

import (
	"context"

	"openchat/assistant/internal/model"
)

// Repository defines the table operations available inside one transaction.
// Instances are handed out by Store.Read and Store.Write and must not outlive
// the callback they were passed to.
type Repository interface {
	InsertGroup(ctx context.Context, group *model.Group) error
	GetGroup(ctx context.Context, groupID string) (*model.Group, error)
	ListGroups(ctx context.Context) ([]model.GroupSummary, error)
	UpdateGroupName(ctx context.Context, groupID, name string) error
	DeleteGroup(ctx context.Context, groupID string) error
	CountGroups(ctx context.Context) (int, error)
	EmptyGroupIDs(ctx context.Context) ([]string, error)

	InsertMessage(ctx context.Context, message *model.Message) error
	ListMessages(ctx context.Context, groupID string) ([]model.Message, error)
	RecentMessages(ctx context.Context, groupID string, limit int) ([]model.Message, error)
	CountMessages(ctx context.Context, groupID string) (int, error)
	DeleteMessagesByGroup(ctx context.Context, groupID string) (int64, error)

	InsertPrompt(ctx context.Context, prompt *model.Prompt) error
	SeedPrompt(ctx context.Context, prompt *model.Prompt) error
	GetPrompt(ctx context.Context, promptID string) (*model.Prompt, error)
	ListPrompts(ctx context.Context) ([]model.Prompt, error)
	DeletePrompt(ctx context.Context, promptID string) error
	CountPrompts(ctx context.Context) (int, error)

	DeleteAllHistory(ctx context.Context) error
}
