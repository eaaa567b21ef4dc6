// Package service holds the chat session orchestration: context assembly,
// the streaming session state machine, the session manager that owns them,
// and the settings, prompt and model services around them.
package service

import (
	"context"
	"time"

	"openchat/assistant/internal/model"
	"openchat/assistant/internal/repository"
)

// Store is the transactional persistence the services run against.
type Store interface {
	Read(ctx context.Context, fn func(repo repository.Repository) error) error
	Write(ctx context.Context, fn func(repo repository.Repository) error) error
}

// AccountSource resolves the endpoint used for requests and the history
// window sent with them.
type AccountSource interface {
	CurrentAccount(ctx context.Context) (*model.Account, error)
	HistoryLimit(ctx context.Context) (int, error)
}

// GroupWatcher is told which group is active so it can track its messages.
type GroupWatcher interface {
	SetActiveGroup(groupID string)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
