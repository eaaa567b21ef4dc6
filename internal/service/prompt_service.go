package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/repository"
)

// PromptService manages prompt templates.
type PromptService struct {
	store Store
}

func NewPromptService(store Store) *PromptService {
	return &PromptService{store: store}
}

// SeedBuiltins inserts the built-in templates that are missing.
func (s *PromptService) SeedBuiltins(ctx context.Context) error {
	return s.store.Write(ctx, func(repo repository.Repository) error {
		for _, p := range model.BuiltinPrompts() {
			if err := repo.SeedPrompt(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PromptService) List(ctx context.Context) ([]model.Prompt, error) {
	var prompts []model.Prompt
	err := s.store.Read(ctx, func(repo repository.Repository) error {
		var err error
		prompts, err = repo.ListPrompts(ctx)
		return err
	})
	return prompts, err
}

// Create stores a user template.
func (s *PromptService) Create(ctx context.Context, title, body string) (*model.Prompt, error) {
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if title == "" || body == "" {
		return nil, fmt.Errorf("%w: prompt title and body are required", app_errors.ErrValidation)
	}
	prompt := model.Prompt{
		ID:        uuid.NewString(),
		Timestamp: nowUTC(),
		Title:     title,
		Body:      body,
	}
	err := s.store.Write(ctx, func(repo repository.Repository) error {
		return repo.InsertPrompt(ctx, &prompt)
	})
	if err != nil {
		return nil, err
	}
	return &prompt, nil
}

// Delete removes a user template. Built-in templates cannot be deleted.
func (s *PromptService) Delete(ctx context.Context, id string) error {
	err := s.store.Write(ctx, func(repo repository.Repository) error {
		p, err := repo.GetPrompt(ctx, id)
		if err != nil {
			return err
		}
		if p.BuiltIn {
			return fmt.Errorf("%w: built-in prompt %q cannot be deleted", app_errors.ErrPermission, p.Title)
		}
		return repo.DeletePrompt(ctx, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: prompt %s", app_errors.ErrNotFound, id)
	}
	if err == nil {
		slog.Info("Prompt deleted", "prompt_id", id)
	}
	return err
}
