package service

import (
	"context"

	"openchat/assistant/internal/model"
	"openchat/assistant/internal/repository"
)

// HistoryService reads stored conversations. Mutations go through the
// SessionManager so the active session stays consistent with the store.
type HistoryService struct {
	store Store
}

func NewHistoryService(store Store) *HistoryService {
	return &HistoryService{store: store}
}

// Groups lists every conversation, most recent first.
func (s *HistoryService) Groups(ctx context.Context) ([]model.GroupSummary, error) {
	var groups []model.GroupSummary
	err := s.store.Read(ctx, func(repo repository.Repository) error {
		var err error
		groups, err = repo.ListGroups(ctx)
		return err
	})
	return groups, err
}

// Messages returns the exchanges of a conversation in chronological order.
func (s *HistoryService) Messages(ctx context.Context, groupID string) ([]model.Message, error) {
	var messages []model.Message
	err := s.store.Read(ctx, func(repo repository.Repository) error {
		if _, err := repo.GetGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		messages, err = repo.ListMessages(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, mapNotFound(err, "group", groupID)
	}
	return messages, nil
}
