package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/llm"
	mock_llm "openchat/assistant/internal/llm/mocks"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/repository"
	"openchat/assistant/internal/service"
)

type managerFixture struct {
	store    *repository.Store
	settings *service.SettingsService
	provider *mock_llm.MockProvider
	watcher  *fakeWatcher
	manager  *service.SessionManager
}

func setupManager(t *testing.T, withAccount bool) managerFixture {
	return setupManagerWithStore(t, withAccount, nil)
}

func setupManagerWithStore(t *testing.T, withAccount bool, wrap func(*repository.Store) service.Store) managerFixture {
	t.Helper()
	f := managerFixture{
		store:    newTestStore(t),
		provider: mock_llm.NewMockProvider(t),
		watcher:  &fakeWatcher{},
	}
	f.settings = service.NewSettingsService(newTestPrefs(t), f.provider, service.DefaultHistoryLimit)
	if withAccount {
		_, err := f.settings.AddAccount(context.Background(), testAccount)
		require.NoError(t, err)
	}
	var store service.Store = f.store
	if wrap != nil {
		store = wrap(f.store)
	}
	f.manager = service.NewSessionManager(store, f.settings, f.provider, f.watcher, service.SessionOptions{})
	t.Cleanup(f.manager.Close)
	return f
}

func (f managerFixture) expectStream(run func(mock.Arguments)) *mock.Call {
	return f.provider.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(run).Return(nil).Once()
}

func await(t *testing.T, ch <-chan service.Outcome) service.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("no outcome delivered")
		return service.Outcome{}
	}
}

func TestSessionManager_SendCompletesAndCommits(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)

	var captured *llm.GenerateRequest
	var capturedAccount model.Account
	f.expectStream(func(args mock.Arguments) {
		capturedAccount = args.Get(1).(model.Account)
		captured = args.Get(2).(*llm.GenerateRequest)
		replay(chunks("He", "llo", " there")...)(args)
	})

	out, err := f.manager.Send(ctx, service.SendRequest{Text: "Hello"})
	require.NoError(t, err)
	outcome := await(t, out)

	require.NoError(t, outcome.Err)
	assert.Equal(t, service.StateCompleted, outcome.State)
	assert.Equal(t, "Hello there", outcome.Message.Content)
	assert.Equal(t, "Hello", outcome.Message.Request)

	assert.Equal(t, "gpt-4o-mini", capturedAccount.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Hello"}, captured.Messages[0])

	_ = f.store.Read(ctx, func(repo repository.Repository) error {
		groups, err := repo.ListGroups(ctx)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Hello", groups[0].Name)
		assert.Equal(t, "api.example.com", groups[0].Origin)
		assert.Equal(t, 1, groups[0].MessageCount)

		messages, err := repo.ListMessages(ctx, groups[0].ID)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Hello there", messages[0].Content)
		assert.Equal(t, outcome.Message.ID, messages[0].ID)
		return nil
	})

	snap := f.manager.Snapshot()
	require.NotNil(t, snap.Group)
	assert.Equal(t, outcome.Message.GroupID, snap.Group.ID)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Err)
	assert.Empty(t, snap.Message.Content)
	assert.NotEqual(t, outcome.Message.ID, snap.Message.ID)
	assert.Equal(t, snap.Group.ID, f.watcher.last())
}

func TestSessionManager_FollowUpCarriesHistoryIntoSameGroup(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)

	f.expectStream(replay(chunks("first answer")...))
	out, err := f.manager.Send(ctx, service.SendRequest{Text: "first question"})
	require.NoError(t, err)
	first := await(t, out)
	require.NoError(t, first.Err)

	var captured *llm.GenerateRequest
	f.expectStream(func(args mock.Arguments) {
		captured = args.Get(2).(*llm.GenerateRequest)
		replay(chunks("second answer")...)(args)
	})
	out, err = f.manager.Send(ctx, service.SendRequest{Text: "second question"})
	require.NoError(t, err)
	second := await(t, out)
	require.NoError(t, second.Err)

	assert.Equal(t, first.Message.GroupID, second.Message.GroupID)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "first question", captured.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, captured.Messages[1].Role)
	assert.Equal(t, "first answer", captured.Messages[1].Content)
	assert.Equal(t, "second question", captured.Messages[2].Content)

	groups, messages := countRows(t, f.store)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 2, messages)
}

func TestSessionManager_SendWithoutAccount(t *testing.T) {
	f := setupManager(t, false)

	out, err := f.manager.Send(context.Background(), service.SendRequest{Text: "Hello"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, app_errors.ErrConfiguration)
	f.provider.AssertNotCalled(t, "GenerateStream", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	groups, messages := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Zero(t, messages)
	assert.False(t, f.manager.Snapshot().Loading)
}

func TestSessionManager_SendRejectsEmptyText(t *testing.T) {
	f := setupManager(t, true)
	_, err := f.manager.Send(context.Background(), service.SendRequest{Text: " \n\t"})
	assert.ErrorIs(t, err, app_errors.ErrValidation)
}

func TestSessionManager_MidStreamFailureDiscardsMessage(t *testing.T) {
	f := setupManager(t, true)
	f.expectStream(replay(
		llm.StreamResponse{Content: "Par"},
		llm.StreamResponse{Err: fmt.Errorf("%w: connection reset", app_errors.ErrTransport)},
	))

	out, err := f.manager.Send(context.Background(), service.SendRequest{Text: "Tell me a story"})
	require.NoError(t, err)
	outcome := await(t, out)

	assert.Equal(t, service.StateFailed, outcome.State)
	assert.ErrorIs(t, outcome.Err, app_errors.ErrTransport)
	assert.Equal(t, "Par", outcome.Message.Content)

	groups, messages := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Zero(t, messages)

	snap := f.manager.Snapshot()
	require.NotNil(t, snap.Err)
	assert.Equal(t, "transport", snap.Err.Kind)
	assert.Empty(t, snap.Message.Content)
	assert.Equal(t, "idle", snap.State)
}

func TestSessionManager_StreamClosedWithoutEndFails(t *testing.T) {
	f := setupManager(t, true)
	f.expectStream(replay(llm.StreamResponse{Content: "Par"}))

	out, err := f.manager.Send(context.Background(), service.SendRequest{Text: "hi"})
	require.NoError(t, err)
	outcome := await(t, out)
	assert.Equal(t, service.StateFailed, outcome.State)
	assert.ErrorIs(t, outcome.Err, app_errors.ErrTransport)
}

func TestSessionManager_CancelLeavesStoreUnchanged(t *testing.T) {
	f := setupManager(t, true)

	streamCtx := make(chan context.Context, 1)
	f.expectStream(func(args mock.Arguments) {
		streamCtx <- args.Get(0).(context.Context)
		hold(llm.StreamResponse{Content: "partial"})(args)
	})

	out, err := f.manager.Send(context.Background(), service.SendRequest{Text: "long answer please"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.manager.Snapshot().Message.Content == "partial"
	}, 3*time.Second, 5*time.Millisecond)
	assert.True(t, f.manager.Snapshot().Loading)
	assert.Equal(t, "streaming", f.manager.Snapshot().State)

	_, err = f.manager.Send(context.Background(), service.SendRequest{Text: "again"})
	assert.ErrorIs(t, err, app_errors.ErrBusy)

	require.NoError(t, f.manager.Cancel())
	outcome := await(t, out)
	assert.Equal(t, service.StateCancelled, outcome.State)
	assert.NoError(t, outcome.Err)

	ctx := <-streamCtx
	require.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, 5*time.Millisecond)

	groups, messages := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Zero(t, messages)

	snap := f.manager.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Message.Content)
	assert.Nil(t, snap.Err)

	// Cancelling while idle is a no-op.
	assert.NoError(t, f.manager.Cancel())
}

// failingStore fails the first n writes the way a full disk would.
type failingStore struct {
	*repository.Store
	failures int
}

func (s *failingStore) Write(ctx context.Context, fn func(repository.Repository) error) error {
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("%w: disk I/O error", app_errors.ErrPersistence)
	}
	return s.Store.Write(ctx, fn)
}

func TestSessionManager_CommitFailureKeepsMessageForRetry(t *testing.T) {
	ctx := context.Background()
	f := setupManagerWithStore(t, true, func(s *repository.Store) service.Store {
		return &failingStore{Store: s, failures: 1}
	})
	f.expectStream(replay(chunks("kept")...))

	out, err := f.manager.Send(ctx, service.SendRequest{Text: "save me"})
	require.NoError(t, err)
	outcome := await(t, out)

	assert.Equal(t, service.StateCompleted, outcome.State)
	assert.ErrorIs(t, outcome.Err, app_errors.ErrPersistence)

	snap := f.manager.Snapshot()
	assert.Equal(t, "kept", snap.Message.Content)
	require.NotNil(t, snap.Err)
	assert.Equal(t, "persistence", snap.Err.Kind)
	assert.Nil(t, snap.Group)

	require.NoError(t, f.manager.RetryCommit(ctx))

	groups, messages := countRows(t, f.store)
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, messages)
	snap = f.manager.Snapshot()
	assert.Nil(t, snap.Err)
	require.NotNil(t, snap.Group)
	assert.Equal(t, "saveme", snap.Group.Name)

	assert.ErrorIs(t, f.manager.RetryCommit(ctx), app_errors.ErrConflict)
}

func TestSessionManager_ResetDuringStream(t *testing.T) {
	f := setupManager(t, true)
	f.expectStream(hold(llm.StreamResponse{Content: "Par"}))

	out, err := f.manager.Send(context.Background(), service.SendRequest{Text: "long answer please"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.manager.Snapshot().Message.Content == "Par"
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, f.manager.Reset())
	outcome := await(t, out)
	assert.Equal(t, service.StateCancelled, outcome.State)

	snap := f.manager.Snapshot()
	assert.Equal(t, "idle", snap.State)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Message.Content)
	assert.Nil(t, snap.Err)

	groups, messages := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Zero(t, messages)
}

func TestSessionManager_ResetDropsUnsavedAnswer(t *testing.T) {
	ctx := context.Background()
	f := setupManagerWithStore(t, true, func(s *repository.Store) service.Store {
		return &failingStore{Store: s, failures: 1}
	})
	f.expectStream(replay(chunks("lost")...))

	out, err := f.manager.Send(ctx, service.SendRequest{Text: "save me"})
	require.NoError(t, err)
	require.ErrorIs(t, await(t, out).Err, app_errors.ErrPersistence)

	require.NoError(t, f.manager.Reset())

	snap := f.manager.Snapshot()
	assert.Empty(t, snap.Message.Content)
	assert.Nil(t, snap.Err)
	assert.ErrorIs(t, f.manager.RetryCommit(ctx), app_errors.ErrConflict)

	groups, messages := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Zero(t, messages)
}

func TestSessionManager_UnsavedAnswerBlocksNextExchange(t *testing.T) {
	ctx := context.Background()
	f := setupManagerWithStore(t, true, func(s *repository.Store) service.Store {
		return &failingStore{Store: s, failures: 1}
	})
	f.expectStream(replay(chunks("kept")...))

	out, err := f.manager.Send(ctx, service.SendRequest{Text: "save me"})
	require.NoError(t, err)
	require.ErrorIs(t, await(t, out).Err, app_errors.ErrPersistence)

	_, err = f.manager.Send(ctx, service.SendRequest{Text: "next"})
	assert.ErrorIs(t, err, app_errors.ErrConflict)
	assert.ErrorIs(t, f.manager.NewConversation(), app_errors.ErrConflict)
	assert.Equal(t, "kept", f.manager.Snapshot().Message.Content)

	require.NoError(t, f.manager.RetryCommit(ctx))
	f.expectStream(replay(chunks("fine")...))
	out, err = f.manager.Send(ctx, service.SendRequest{Text: "next"})
	require.NoError(t, err)
	assert.NoError(t, await(t, out).Err)
}

// closingStore closes the manager while a write is in progress.
type closingStore struct {
	*repository.Store
	failures int
	onWrite  func()
}

func (s *closingStore) Write(ctx context.Context, fn func(repository.Repository) error) error {
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("%w: disk I/O error", app_errors.ErrPersistence)
	}
	if s.onWrite != nil {
		s.onWrite()
	}
	return s.Store.Write(ctx, fn)
}

func TestSessionManager_RetryCommitReportsClose(t *testing.T) {
	ctx := context.Background()
	cs := &closingStore{failures: 1}
	f := setupManagerWithStore(t, true, func(s *repository.Store) service.Store {
		cs.Store = s
		return cs
	})
	f.expectStream(replay(chunks("kept")...))

	out, err := f.manager.Send(ctx, service.SendRequest{Text: "save me"})
	require.NoError(t, err)
	require.ErrorIs(t, await(t, out).Err, app_errors.ErrPersistence)

	cs.onWrite = f.manager.Close
	err = f.manager.RetryCommit(ctx)
	assert.ErrorIs(t, err, app_errors.ErrInternal)
}

func TestSessionManager_RenameGroup(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)
	f.expectStream(replay(chunks("ok")...))
	out, err := f.manager.Send(ctx, service.SendRequest{Text: "topic"})
	require.NoError(t, err)
	groupID := await(t, out).Message.GroupID

	assert.ErrorIs(t, f.manager.RenameGroup(ctx, groupID, "   "), app_errors.ErrValidation)
	assert.ErrorIs(t, f.manager.RenameGroup(ctx, "missing", "name"), app_errors.ErrNotFound)

	require.NoError(t, f.manager.RenameGroup(ctx, groupID, "  Trip planning "))
	assert.Equal(t, "Trip planning", f.manager.Snapshot().Group.Name)

	_ = f.store.Read(ctx, func(repo repository.Repository) error {
		g, err := repo.GetGroup(ctx, groupID)
		require.NoError(t, err)
		assert.Equal(t, "Trip planning", g.Name)
		return nil
	})
}

func TestSessionManager_DeleteGroupCascades(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)
	f.expectStream(replay(chunks("one")...))
	out, err := f.manager.Send(ctx, service.SendRequest{Text: "one"})
	require.NoError(t, err)
	groupID := await(t, out).Message.GroupID

	require.NoError(t, f.manager.DeleteGroup(ctx, groupID))

	groups, messages := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Zero(t, messages)
	_ = f.store.Read(ctx, func(repo repository.Repository) error {
		msgs, err := repo.ListMessages(ctx, groupID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
		return nil
	})
	assert.Nil(t, f.manager.Snapshot().Group)
	assert.Equal(t, "", f.watcher.last())

	assert.ErrorIs(t, f.manager.DeleteGroup(ctx, groupID), app_errors.ErrNotFound)
}

func TestSessionManager_PruneEmptyGroups(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)

	f.expectStream(replay(chunks("answer")...))
	out, err := f.manager.Send(ctx, service.SendRequest{Text: "keep me"})
	require.NoError(t, err)
	kept := await(t, out).Message.GroupID

	require.NoError(t, f.store.Write(ctx, func(repo repository.Repository) error {
		for _, name := range []string{"empty one", "empty two"} {
			g := model.NewGroup(name, "")
			if err := repo.InsertGroup(ctx, &g); err != nil {
				return err
			}
		}
		return nil
	}))

	n, err := f.manager.PruneEmptyGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_ = f.store.Read(ctx, func(repo repository.Repository) error {
		groups, err := repo.ListGroups(ctx)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, kept, groups[0].ID)
		return nil
	})

	n, err = f.manager.PruneEmptyGroups(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionManager_NewConversationStartsNewGroup(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)

	f.expectStream(replay(chunks("a")...))
	out, err := f.manager.Send(ctx, service.SendRequest{Text: "first"})
	require.NoError(t, err)
	first := await(t, out)

	require.NoError(t, f.manager.NewConversation())
	assert.Nil(t, f.manager.Snapshot().Group)

	f.expectStream(replay(chunks("b")...))
	out, err = f.manager.Send(ctx, service.SendRequest{Text: "second"})
	require.NoError(t, err)
	second := await(t, out)

	assert.NotEqual(t, first.Message.GroupID, second.Message.GroupID)

	require.NoError(t, f.manager.SelectGroup(ctx, first.Message.GroupID))
	assert.Equal(t, first.Message.GroupID, f.manager.Snapshot().Group.ID)
	assert.ErrorIs(t, f.manager.SelectGroup(ctx, "missing"), app_errors.ErrNotFound)

	require.NoError(t, f.manager.ClearHistory(ctx))
	groups, _ := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Nil(t, f.manager.Snapshot().Group)
}

func TestSessionManager_SelectedPromptBecomesSystemEntry(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)
	require.NoError(t, service.NewPromptService(f.store).SeedBuiltins(ctx))

	assert.ErrorIs(t, f.manager.SelectPrompt(ctx, "missing"), app_errors.ErrNotFound)
	require.NoError(t, f.manager.SelectPrompt(ctx, model.PromptCodeID))
	assert.Equal(t, model.PromptCodeID, f.manager.Snapshot().PromptID)

	var captured *llm.GenerateRequest
	f.expectStream(func(args mock.Arguments) {
		captured = args.Get(2).(*llm.GenerateRequest)
		replay(chunks("func main() {}")...)(args)
	})
	out, err := f.manager.Send(ctx, service.SendRequest{Text: "write go"})
	require.NoError(t, err)
	await(t, out)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, llm.RoleSystem, captured.Messages[0].Role)
	assert.Equal(t, "Code Assistant", captured.Messages[0].Name)

	require.NoError(t, f.manager.SelectPrompt(ctx, ""))
	assert.Empty(t, f.manager.Snapshot().PromptID)
}

func TestSessionManager_RunOnceDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	f := setupManager(t, true)
	require.NoError(t, service.NewPromptService(f.store).SeedBuiltins(ctx))

	var captured *llm.GenerateRequest
	f.expectStream(func(args mock.Arguments) {
		captured = args.Get(2).(*llm.GenerateRequest)
		replay(chunks("Bonjour", " le monde")...)(args)
	})

	var deltas []string
	text, err := f.manager.RunOnce(ctx, model.PromptTranslateID, "Hello world", func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Bonjour le monde", text)
	assert.Equal(t, []string{"Bonjour", " le monde"}, deltas)
	require.Len(t, captured.Messages, 2)

	groups, _ := countRows(t, f.store)
	assert.Zero(t, groups)
	assert.Equal(t, "idle", f.manager.Snapshot().State)
}

func TestSessionManager_ClosedManagerRejectsCommands(t *testing.T) {
	f := setupManager(t, true)
	f.manager.Close()

	err := f.manager.NewConversation()
	assert.True(t, errors.Is(err, app_errors.ErrInternal))
}

func TestGroupName(t *testing.T) {
	assert.Equal(t, "Helloworld", service.GroupName("  Hello \n world  "))
	assert.Equal(t, "abcdefghij", service.GroupName("abcdefghijklmnop"))
	assert.Equal(t, "你好世界你好世界你好", service.GroupName("你好 世界你好世界你好世界"))
	assert.Equal(t, model.DefaultGroupName, service.GroupName(" \t "))
}
