package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/llm"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/prefs"
)

const (
	accountsKey     = "accounts"
	historyLimitKey = "history_limit"

	// DefaultAccountName is used when an account is saved without a name.
	DefaultAccountName = "Assistant"
	// DefaultAccountPath is the API base path of OpenAI-compatible endpoints.
	DefaultAccountPath = "/v1"

	MinHistoryLimit     = 0
	MaxHistoryLimit     = 50
	DefaultHistoryLimit = 10
)

// SettingsService manages endpoint accounts and chat preferences. Values live
// in the preferences store and survive restarts.
type SettingsService struct {
	prefs        *prefs.Store
	llm          llm.Provider
	validate     *validator.Validate
	historyLimit int
}

// NewSettingsService creates a SettingsService. defaultHistoryLimit is used
// until a limit has been saved.
func NewSettingsService(p *prefs.Store, provider llm.Provider, defaultHistoryLimit int) *SettingsService {
	return &SettingsService{
		prefs:        p,
		llm:          provider,
		validate:     validator.New(),
		historyLimit: clampHistoryLimit(defaultHistoryLimit),
	}
}

// Accounts returns every saved account in insertion order.
func (s *SettingsService) Accounts(_ context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if _, err := s.prefs.Get(accountsKey, &accounts); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	return accounts, nil
}

// CurrentAccount returns the account used for new requests. It fails with
// ErrConfiguration when there is none or it misses a required field.
func (s *SettingsService) CurrentAccount(ctx context.Context) (*model.Account, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if !a.Current {
			continue
		}
		if err := s.validate.Struct(a); err != nil {
			return nil, fmt.Errorf("%w: current account %q is incomplete", app_errors.ErrConfiguration, a.Name)
		}
		return &a, nil
	}
	return nil, fmt.Errorf("%w: no account configured", app_errors.ErrConfiguration)
}

// AddAccount normalizes and stores a new account. The first account becomes
// current, as does any account added with Current set.
func (s *SettingsService) AddAccount(_ context.Context, account model.Account) (*model.Account, error) {
	account = normalizeAccount(account)
	if err := s.validateAccount(account); err != nil {
		return nil, err
	}
	account.ID = uuid.NewString()
	account.Timestamp = time.Now().UTC()

	err := prefs.Update(s.prefs, accountsKey, func(accounts *[]model.Account) error {
		for _, a := range *accounts {
			if a.SameEndpoint(account) {
				return fmt.Errorf("%w: an account for this endpoint already exists", app_errors.ErrValidation)
			}
		}
		if len(*accounts) == 0 {
			account.Current = true
		}
		if account.Current {
			for i := range *accounts {
				(*accounts)[i].Current = false
			}
		}
		*accounts = append(*accounts, account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Account added", "account_id", account.ID, "host", account.Host, "model", account.Model)
	return &account, nil
}

// UpdateAccount replaces the fields of the account with the same ID. The
// current flag is left as it is; use SetCurrent to change it.
func (s *SettingsService) UpdateAccount(_ context.Context, account model.Account) (*model.Account, error) {
	account = normalizeAccount(account)
	if err := s.validateAccount(account); err != nil {
		return nil, err
	}

	var updated model.Account
	err := prefs.Update(s.prefs, accountsKey, func(accounts *[]model.Account) error {
		idx := slices.IndexFunc(*accounts, func(a model.Account) bool { return a.ID == account.ID })
		if idx < 0 {
			return fmt.Errorf("%w: account %s", app_errors.ErrNotFound, account.ID)
		}
		for i, a := range *accounts {
			if i != idx && a.SameEndpoint(account) {
				return fmt.Errorf("%w: an account for this endpoint already exists", app_errors.ErrValidation)
			}
		}
		account.Current = (*accounts)[idx].Current
		account.Timestamp = (*accounts)[idx].Timestamp
		(*accounts)[idx] = account
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteAccount removes an account. When it was current, the first remaining
// account takes over.
func (s *SettingsService) DeleteAccount(_ context.Context, id string) error {
	return prefs.Update(s.prefs, accountsKey, func(accounts *[]model.Account) error {
		kept := make([]model.Account, 0, len(*accounts))
		var removed *model.Account
		for _, a := range *accounts {
			if a.ID == id {
				removed = &a
				continue
			}
			kept = append(kept, a)
		}
		if removed == nil {
			return fmt.Errorf("%w: account %s", app_errors.ErrNotFound, id)
		}
		if removed.Current && len(kept) > 0 {
			kept[0].Current = true
		}
		*accounts = kept
		return nil
	})
}

// SetCurrent makes id the only current account.
func (s *SettingsService) SetCurrent(_ context.Context, id string) error {
	return prefs.Update(s.prefs, accountsKey, func(accounts *[]model.Account) error {
		found := false
		for i := range *accounts {
			(*accounts)[i].Current = (*accounts)[i].ID == id
			found = found || (*accounts)[i].Current
		}
		if !found {
			return fmt.Errorf("%w: account %s", app_errors.ErrNotFound, id)
		}
		return nil
	})
}

// ExportAccount encodes an account so it can be shared and imported elsewhere.
func (s *SettingsService) ExportAccount(ctx context.Context, id string) (string, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range accounts {
		if a.ID == id {
			a.Current = false
			raw, err := json.Marshal(a)
			if err != nil {
				return "", fmt.Errorf("failed to encode account: %w", err)
			}
			return base64.StdEncoding.EncodeToString(raw), nil
		}
	}
	return "", fmt.Errorf("%w: account %s", app_errors.ErrNotFound, id)
}

// ImportAccount decodes an exported account and adds it under a new ID.
func (s *SettingsService) ImportAccount(ctx context.Context, encoded string) (*model.Account, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: account data is not base64: %w", app_errors.ErrValidation, err)
	}
	var account model.Account
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("%w: account data is malformed: %w", app_errors.ErrValidation, err)
	}
	account.Current = false
	return s.AddAccount(ctx, account)
}

// SeedAccounts adds accounts only when none exist yet. It returns how many
// were added.
func (s *SettingsService) SeedAccounts(ctx context.Context, seed []model.Account) (int, error) {
	existing, err := s.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	added := 0
	for _, a := range seed {
		if _, err := s.AddAccount(ctx, a); err != nil {
			slog.Warn("Skipping seeded account", "host", a.Host, "error", err)
			continue
		}
		added++
	}
	return added, nil
}

// TestAccount reports whether the endpoint answers a one-line completion.
// Incomplete accounts fail without a network call.
func (s *SettingsService) TestAccount(ctx context.Context, account model.Account) bool {
	account = normalizeAccount(account)
	if err := s.validate.Struct(account); err != nil {
		return false
	}
	if err := s.llm.Check(ctx, account); err != nil {
		slog.Info("Account check failed", "host", account.Host, "error", err)
		return false
	}
	return true
}

// HistoryLimit returns how many past exchanges are sent with a request.
func (s *SettingsService) HistoryLimit(_ context.Context) (int, error) {
	limit := s.historyLimit
	if _, err := s.prefs.Get(historyLimitKey, &limit); err != nil {
		return 0, err
	}
	return clampHistoryLimit(limit), nil
}

// SetHistoryLimit stores the history window.
func (s *SettingsService) SetHistoryLimit(_ context.Context, limit int) error {
	if limit < MinHistoryLimit || limit > MaxHistoryLimit {
		return fmt.Errorf("%w: history limit must be between %d and %d", app_errors.ErrValidation, MinHistoryLimit, MaxHistoryLimit)
	}
	return s.prefs.Set(historyLimitKey, limit)
}

func (s *SettingsService) validateAccount(account model.Account) error {
	err := s.validate.Struct(account)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %s", app_errors.ErrValidation, err.Error())
	}
	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("%w: missing %s", app_errors.ErrValidation, strings.Join(fields, ", "))
}

func normalizeAccount(a model.Account) model.Account {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		a.Name = DefaultAccountName
	}
	a.Host = stripSpace(a.Host)
	a.Path = stripSpace(a.Path)
	if a.Path == "" {
		a.Path = DefaultAccountPath
	}
	a.Key = stripSpace(a.Key)
	a.Model = stripSpace(a.Model)
	return a
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func clampHistoryLimit(n int) int {
	return max(MinHistoryLimit, min(n, MaxHistoryLimit))
}
