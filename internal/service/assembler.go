package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"openchat/assistant/internal/llm"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/repository"
)

// AssembleRequest describes the pending user turn.
type AssembleRequest struct {
	GroupID      string
	PromptID     string
	HistoryLimit int
	Text         string
	ImageRef     *string
}

// Assembler builds the bounded conversation context sent with a request.
type Assembler struct {
	store    Store
	accounts AccountSource
	readFile func(name string) ([]byte, error)
}

func NewAssembler(store Store, accounts AccountSource) *Assembler {
	return &Assembler{store: store, accounts: accounts, readFile: os.ReadFile}
}

// Assemble returns the system prompt (when one is selected), up to
// HistoryLimit past exchanges in chronological order, and the pending user
// entry. The result holds at most 2*HistoryLimit+2 entries.
func (a *Assembler) Assemble(ctx context.Context, req AssembleRequest) (*llm.GenerateRequest, error) {
	account, err := a.accounts.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	limit := clampHistoryLimit(req.HistoryLimit)

	var prompt *model.Prompt
	var history []model.Message
	err = a.store.Read(ctx, func(repo repository.Repository) error {
		var err error
		if prompt, err = lookupPrompt(ctx, repo, req.PromptID); err != nil {
			return err
		}
		if req.GroupID == "" {
			return nil
		}
		history, err = repo.RecentMessages(ctx, req.GroupID, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not read conversation history: %w", err)
	}

	messages := make([]llm.Message, 0, 2*len(history)+2)
	if prompt != nil {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Name: prompt.Title, Content: prompt.Body})
	}
	slices.Reverse(history)
	for _, m := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: m.Request},
			llm.Message{Role: llm.RoleAssistant, Content: m.Content},
		)
	}
	messages = append(messages, a.pendingEntry(req.Text, req.ImageRef))

	return &llm.GenerateRequest{Model: account.Model, Messages: messages}, nil
}

// AssembleOnce builds a context without history: the selected template and
// the text it applies to.
func (a *Assembler) AssembleOnce(ctx context.Context, promptID, text string) (*llm.GenerateRequest, error) {
	account, err := a.accounts.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	var prompt *model.Prompt
	err = a.store.Read(ctx, func(repo repository.Repository) error {
		var err error
		prompt, err = lookupPrompt(ctx, repo, promptID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("could not read prompt: %w", err)
	}

	messages := make([]llm.Message, 0, 2)
	if prompt != nil {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Name: prompt.Title, Content: prompt.Body})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	return &llm.GenerateRequest{Model: account.Model, Messages: messages}, nil
}

func (a *Assembler) pendingEntry(text string, imageRef *string) llm.Message {
	entry := llm.Message{Role: llm.RoleUser, Content: text}
	if imageRef == nil || *imageRef == "" {
		return entry
	}
	data, err := a.readFile(*imageRef)
	if err != nil {
		slog.Warn("Image unreadable, sending text only", "image_ref", *imageRef, "error", err)
		return entry
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		slog.Warn("Attachment is not an image, sending text only", "image_ref", *imageRef, "mime", mime.String())
		return entry
	}
	entry.Image = &llm.Image{MIME: mime.String(), Data: data}
	return entry
}

// lookupPrompt resolves an optional prompt. A selection that no longer exists
// is treated as no selection.
func lookupPrompt(ctx context.Context, repo repository.Repository, id string) (*model.Prompt, error) {
	if id == "" {
		return nil, nil
	}
	p, err := repo.GetPrompt(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}
