package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"openchat/assistant/internal/config"
	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/interfaces/mocks"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/service"
)

func TestNewApp(t *testing.T) {
	dir := t.TempDir()
	accountsFile := filepath.Join(dir, "accounts.toml")
	require.NoError(t, os.WriteFile(accountsFile, []byte(`
[[accounts]]
name  = "Local"
host  = "localhost:11434"
path  = "/v1"
key   = "sk-local"
model = "llama3"
`), 0o600))

	cfg := &config.Config{
		DatabasePath:     filepath.Join(dir, "assistant.db"),
		PrefsPath:        filepath.Join(dir, "defaults.db"),
		AccountsFile:     accountsFile,
		HistoryLimit:     10,
		LogLevel:         "DEBUG",
		ListenAddr:       "127.0.0.1:0",
		RequestTimeout:   time.Minute,
		ThrottleInterval: 10 * time.Millisecond,
		WatchDebounce:    10 * time.Millisecond,
	}

	app, err := NewApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.NotNil(t, app.DB)
	assert.NotNil(t, app.Server)
	assert.Equal(t, cfg.ListenAddr, app.Server.Addr)

	ctx := context.Background()
	accounts, err := app.Settings.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "llama3", accounts[0].Model)
	assert.True(t, accounts[0].Current)

	prompts, err := app.Prompts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, prompts, len(model.BuiltinPrompts()))

	require.NoError(t, app.Close())
}

func TestNewApp_BadAccountsFile(t *testing.T) {
	dir := t.TempDir()
	accountsFile := filepath.Join(dir, "accounts.toml")
	require.NoError(t, os.WriteFile(accountsFile, []byte("[[accounts]\n"), 0o600))

	_, err := NewApp(&config.Config{
		DatabasePath: filepath.Join(dir, "assistant.db"),
		PrefsPath:    filepath.Join(dir, "defaults.db"),
		AccountsFile: accountsFile,
	})
	assert.ErrorContains(t, err, "accounts file")
}

func TestRun_UnknownMode(t *testing.T) {
	assert.Equal(t, 2, Run([]string{"dance"}))
}

type replFixture struct {
	repl     *repl
	sessions *mocks.MockSessionManager
	history  *mocks.MockHistoryService
	prompts  *mocks.MockPromptService
	out      *bytes.Buffer
}

func setupREPL(t *testing.T) replFixture {
	f := replFixture{
		sessions: mocks.NewMockSessionManager(t),
		history:  mocks.NewMockHistoryService(t),
		prompts:  mocks.NewMockPromptService(t),
		out:      &bytes.Buffer{},
	}
	f.repl = newREPL(f.sessions, f.history, f.prompts, f.out, time.Millisecond)
	return f
}

func snapshots(snaps ...model.SessionSnapshot) <-chan model.SessionSnapshot {
	ch := make(chan model.SessionSnapshot, len(snaps))
	for _, s := range snaps {
		ch <- s
	}
	return ch
}

func outcome(o service.Outcome) <-chan service.Outcome {
	ch := make(chan service.Outcome, 1)
	ch <- o
	return ch
}

func TestREPL_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("prints the streamed answer", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Subscribe").Return(snapshots(
			model.SessionSnapshot{Loading: true, Message: model.Message{Content: "Hel"}},
			model.SessionSnapshot{Loading: true, Message: model.Message{Content: "Hello"}},
		), func() {}).Once()
		f.sessions.On("Send", mock.Anything, service.SendRequest{Text: "Hi"}).
			Return(outcome(service.Outcome{
				State:   service.StateCompleted,
				Message: model.Message{Request: "Hi", Content: "Hello there"},
			}), nil).Once()

		more, err := f.repl.handle(ctx, "Hi")
		require.NoError(t, err)
		assert.True(t, more)
		assert.Equal(t, "Hello there\n", f.out.String())
	})

	t.Run("failure is returned", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Subscribe").Return(snapshots(), func() {}).Once()
		f.sessions.On("Send", mock.Anything, mock.Anything).
			Return(outcome(service.Outcome{
				State: service.StateFailed,
				Err:   fmt.Errorf("%w: 401 unauthorized", app_errors.ErrTransport),
			}), nil).Once()

		_, err := f.repl.handle(ctx, "Hi")
		assert.ErrorIs(t, err, app_errors.ErrTransport)
	})

	t.Run("unsaved answer points at retry", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Subscribe").Return(snapshots(), func() {}).Once()
		f.sessions.On("Send", mock.Anything, mock.Anything).
			Return(outcome(service.Outcome{
				State:   service.StateCompleted,
				Message: model.Message{Content: "done"},
				Err:     app_errors.ErrInternal,
			}), nil).Once()

		_, err := f.repl.handle(ctx, "Hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/retry")
		assert.Contains(t, f.out.String(), "done")
	})

	t.Run("cancelled", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Subscribe").Return(snapshots(), func() {}).Once()
		f.sessions.On("Send", mock.Anything, mock.Anything).
			Return(outcome(service.Outcome{State: service.StateCancelled, Message: model.Message{Content: "Par"}}), nil).Once()

		_, err := f.repl.handle(ctx, "Hi")
		require.NoError(t, err)
		assert.Equal(t, "Par\n[Cancelled]\n", f.out.String())
	})

	t.Run("rejected synchronously", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Subscribe").Return(snapshots(), func() {}).Once()
		f.sessions.On("Send", mock.Anything, mock.Anything).Return(nil, app_errors.ErrConfiguration).Once()

		_, err := f.repl.handle(ctx, "Hi")
		assert.ErrorIs(t, err, app_errors.ErrConfiguration)
	})
}

func TestREPL_Commands(t *testing.T) {
	ctx := context.Background()

	t.Run("quit", func(t *testing.T) {
		f := setupREPL(t)
		more, err := f.repl.handle(ctx, "/quit")
		require.NoError(t, err)
		assert.False(t, more)
	})

	t.Run("unknown", func(t *testing.T) {
		f := setupREPL(t)
		more, err := f.repl.handle(ctx, "/dance")
		assert.True(t, more)
		assert.ErrorContains(t, err, "unknown command: /dance")
	})

	t.Run("new conversation", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("NewConversation").Return(nil).Once()
		_, err := f.repl.handle(ctx, "/new")
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "[New conversation]")
	})

	t.Run("rename without an active conversation", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Snapshot").Return(model.SessionSnapshot{}).Once()
		_, err := f.repl.handle(ctx, "/rename Trip")
		assert.ErrorIs(t, err, app_errors.ErrConflict)
	})

	t.Run("rename the active conversation", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Snapshot").Return(model.SessionSnapshot{Group: &model.Group{ID: "g1"}}).Once()
		f.sessions.On("RenameGroup", mock.Anything, "g1", "Trip plans").Return(nil).Once()
		_, err := f.repl.handle(ctx, "/rename Trip plans")
		require.NoError(t, err)
	})

	t.Run("groups", func(t *testing.T) {
		f := setupREPL(t)
		f.history.On("Groups", mock.Anything).Return([]model.GroupSummary{
			{Group: model.Group{ID: "g1", Name: "Trip"}, MessageCount: 3},
		}, nil).Once()
		_, err := f.repl.handle(ctx, "/groups")
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "g1  Trip")
	})

	t.Run("open prints the conversation", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("SelectGroup", mock.Anything, "g1").Return(nil).Once()
		f.history.On("Messages", mock.Anything, "g1").Return([]model.Message{
			{Request: "Where to?", Content: "Lisbon."},
		}, nil).Once()
		_, err := f.repl.handle(ctx, "/open g1")
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "> Where to?\nLisbon.")
	})

	t.Run("open unknown", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("SelectGroup", mock.Anything, "nope").Return(app_errors.ErrNotFound).Once()
		_, err := f.repl.handle(ctx, "/open nope")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("prompt none clears the selection", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("SelectPrompt", mock.Anything, "").Return(nil).Once()
		_, err := f.repl.handle(ctx, "/prompt none")
		require.NoError(t, err)
	})

	t.Run("prompts marks the selection", func(t *testing.T) {
		f := setupREPL(t)
		f.prompts.On("List", mock.Anything).Return(model.BuiltinPrompts(), nil).Once()
		f.sessions.On("Snapshot").Return(model.SessionSnapshot{PromptID: model.PromptCodeID}).Once()
		_, err := f.repl.handle(ctx, "/prompts")
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "* "+model.PromptCodeID)
	})

	t.Run("prune", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("PruneEmptyGroups", mock.Anything).Return(2, nil).Once()
		_, err := f.repl.handle(ctx, "/prune")
		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "Removed 2")
	})

	t.Run("retry with nothing to save", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("RetryCommit", mock.Anything).Return(app_errors.ErrConflict).Once()
		_, err := f.repl.handle(ctx, "/retry")
		assert.ErrorIs(t, err, app_errors.ErrConflict)
	})

	t.Run("ask streams without storing", func(t *testing.T) {
		f := setupREPL(t)
		f.sessions.On("Snapshot").Return(model.SessionSnapshot{PromptID: model.PromptCodeID}).Once()
		f.sessions.On("RunOnce", mock.Anything, model.PromptCodeID, "fix this", mock.Anything).
			Run(func(args mock.Arguments) {
				onDelta := args.Get(3).(func(string))
				onDelta("Fixed")
				onDelta(".")
			}).
			Return("Fixed.", nil).Once()
		_, err := f.repl.handle(ctx, "/ask fix this")
		require.NoError(t, err)
		assert.Equal(t, "Fixed.\n", f.out.String())
	})
}
