package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"openchat/assistant/internal/database"
	"openchat/assistant/internal/llm"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/prefs"
	"openchat/assistant/internal/repository"
	"openchat/assistant/internal/service"
)

var testAccount = model.Account{
	Name:  "Test",
	Host:  "api.example.com",
	Path:  "/v1",
	Key:   "sk-test",
	Model: "gpt-4o-mini",
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "assistant.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewStore(db)
}

func newTestPrefs(t *testing.T) *prefs.Store {
	t.Helper()
	p, err := prefs.Open(filepath.Join(t.TempDir(), "defaults.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// replay feeds events to the channel handed to GenerateStream and closes it,
// the way a provider does.
func replay(events ...llm.StreamResponse) func(mock.Arguments) {
	return func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		ch := args.Get(3).(chan<- llm.StreamResponse)
		defer close(ch)
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// hold sends the events and then keeps the stream open until its context is
// cancelled.
func hold(events ...llm.StreamResponse) func(mock.Arguments) {
	return func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		ch := args.Get(3).(chan<- llm.StreamResponse)
		defer close(ch)
		for _, ev := range events {
			ch <- ev
		}
		<-ctx.Done()
	}
}

func chunks(parts ...string) []llm.StreamResponse {
	events := make([]llm.StreamResponse, 0, len(parts)+1)
	for _, p := range parts {
		events = append(events, llm.StreamResponse{Content: p})
	}
	return append(events, llm.StreamResponse{Done: true})
}

type fakeWatcher struct {
	mu  sync.Mutex
	ids []string
}

func (w *fakeWatcher) SetActiveGroup(id string) {
	w.mu.Lock()
	w.ids = append(w.ids, id)
	w.mu.Unlock()
}

func (w *fakeWatcher) last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ids) == 0 {
		return ""
	}
	return w.ids[len(w.ids)-1]
}

// staticAccounts is an AccountSource with fixed answers.
type staticAccounts struct {
	account *model.Account
	err     error
	limit   int
}

func (s staticAccounts) CurrentAccount(context.Context) (*model.Account, error) {
	return s.account, s.err
}

func (s staticAccounts) HistoryLimit(context.Context) (int, error) {
	return s.limit, nil
}

func countRows(t *testing.T, store *repository.Store) (groups int, messages int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Read(ctx, func(repo repository.Repository) error {
		var err error
		if groups, err = repo.CountGroups(ctx); err != nil {
			return err
		}
		list, err := repo.ListGroups(ctx)
		for _, g := range list {
			messages += g.MessageCount
		}
		return err
	}))
	return groups, messages
}

var _ service.AccountSource = staticAccounts{}
