package service

import (
	"context"

	"openchat/assistant/internal/llm"
)

// ModelService lists the models offered by the current endpoint.
type ModelService struct {
	accounts AccountSource
	llm      llm.Provider
}

// NewModelService creates a new ModelService.
func NewModelService(accounts AccountSource, llmProvider llm.Provider) *ModelService {
	return &ModelService{accounts: accounts, llm: llmProvider}
}

// List returns the model identifiers of the current account's endpoint.
func (s *ModelService) List(ctx context.Context) ([]string, error) {
	account, err := s.accounts.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	return s.llm.ListModels(ctx, *account)
}
