package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/llm"
	"openchat/assistant/internal/metrics"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/notify"
	"openchat/assistant/internal/repository"
)

// groupNameRunes bounds the name derived from the first request of a conversation.
const groupNameRunes = 10

var errClosed = fmt.Errorf("%w: session manager closed", app_errors.ErrInternal)

// SendRequest is one user turn.
type SendRequest struct {
	Text     string  `json:"text"`
	ImageRef *string `json:"image_ref,omitempty"`
	FileRef  *string `json:"file_ref,omitempty"`
}

// Outcome is the terminal result of a Send. Completed outcomes carry the
// committed message; a Completed outcome with Err set means the exchange
// finished but could not be saved (see RetryCommit).
type Outcome struct {
	State   StreamState
	Message model.Message
	Err     error
}

type SessionOptions struct {
	// RequestTimeout bounds a whole streamed request. Zero disables it.
	RequestTimeout time.Duration
}

type pendingCommit struct {
	message model.Message
	group   *model.Group
	origin  string
	outcome chan Outcome
}

// SessionManager orchestrates the single active conversation of the process.
// Its state is owned by one goroutine; every public method hands that
// goroutine a command and waits for it, while storage and network I/O run in
// helper goroutines that report back the same way.
type SessionManager struct {
	store     Store
	accounts  AccountSource
	provider  llm.Provider
	assembler *Assembler
	watcher   GroupWatcher
	hub       *notify.Hub[model.SessionSnapshot]

	ctx       context.Context
	cancel    context.CancelFunc
	inbox     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the run goroutine.
	session    *StreamSession
	group      *model.Group
	promptID   string
	committing bool
	lastErr    error
	pending    *pendingCommit
	outcome    chan Outcome
	account    model.Account
	gen        uint64
}

// NewSessionManager starts a session manager. watcher may be nil.
func NewSessionManager(store Store, accounts AccountSource, provider llm.Provider, watcher GroupWatcher, opts SessionOptions) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	session := NewStreamSession(provider, opts.RequestTimeout)
	m := &SessionManager{
		store:     store,
		accounts:  accounts,
		provider:  provider,
		assembler: NewAssembler(store, accounts),
		watcher:   watcher,
		hub: notify.NewHub(model.SessionSnapshot{
			State:   session.State().String(),
			Message: session.Message(),
		}),
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		session: session,
	}
	go m.run()
	return m
}

func (m *SessionManager) run() {
	defer close(m.done)
	for {
		select {
		case fn := <-m.inbox:
			fn()
		case <-m.quit:
			return
		}
	}
}

// do runs fn on the actor goroutine and waits for it.
func (m *SessionManager) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case m.inbox <- func() { defer close(finished); fn() }:
	case <-m.done:
		return errClosed
	}
	<-finished
	return nil
}

// post queues fn on the actor goroutine without waiting for it to run.
func (m *SessionManager) post(fn func()) {
	select {
	case m.inbox <- fn:
	case <-m.done:
	}
}

// Send starts an exchange. It fails synchronously when text is empty, a
// request is already in flight, an earlier answer is still unsaved, or no
// usable account is configured; nothing is persisted in those cases. Otherwise the returned channel receives exactly
// one Outcome.
func (m *SessionManager) Send(ctx context.Context, req SendRequest) (<-chan Outcome, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", app_errors.ErrValidation)
	}
	account, err := m.accounts.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}

	var out chan Outcome
	var sendErr error
	err = m.do(func() {
		if m.committing {
			sendErr = fmt.Errorf("%w: previous exchange is still being saved", app_errors.ErrBusy)
			return
		}
		if m.pending != nil {
			sendErr = fmt.Errorf("%w: previous answer is not saved, retry or reset first", app_errors.ErrConflict)
			return
		}
		msg := model.NewMessage()
		msg.Request = text
		msg.ImageRef = req.ImageRef
		msg.FileRef = req.FileRef
		if m.group != nil {
			msg.GroupID = m.group.ID
		}
		if sendErr = m.session.Begin(msg); sendErr != nil {
			return
		}

		m.gen++
		m.lastErr = nil
		m.account = *account
		out = make(chan Outcome, 1)
		m.outcome = out
		m.publish()

		gen := m.gen
		areq := AssembleRequest{GroupID: msg.GroupID, PromptID: m.promptID, Text: text, ImageRef: req.ImageRef}
		go m.prepare(gen, *account, areq)
	})
	if err != nil {
		return nil, err
	}
	if sendErr != nil {
		return nil, sendErr
	}
	slog.Debug("Exchange started", "host", account.Host, "model", account.Model)
	return out, nil
}

func (m *SessionManager) prepare(gen uint64, account model.Account, areq AssembleRequest) {
	limit, err := m.accounts.HistoryLimit(m.ctx)
	if err != nil {
		slog.Warn("Could not read history limit, using default", "error", err)
		limit = DefaultHistoryLimit
	}
	areq.HistoryLimit = limit
	req, err := m.assembler.Assemble(m.ctx, areq)
	m.post(func() { m.onPrepared(gen, account, req, err) })
}

func (m *SessionManager) onPrepared(gen uint64, account model.Account, req *llm.GenerateRequest, err error) {
	if gen != m.gen || m.session.State() != StateRequesting {
		return
	}
	if err != nil {
		m.session.Fail(err)
		m.finish()
		return
	}
	ch, err := m.session.Start(m.ctx, account, req)
	if err != nil {
		m.session.Fail(err)
		m.finish()
		return
	}
	go m.forward(gen, ch)
}

// forward relays stream events to the actor in arrival order.
func (m *SessionManager) forward(gen uint64, ch <-chan llm.StreamResponse) {
	for ev := range ch {
		m.post(func() { m.onEvent(gen, ev) })
	}
	m.post(func() { m.onClosed(gen) })
}

func (m *SessionManager) onEvent(gen uint64, ev llm.StreamResponse) {
	if gen != m.gen {
		return
	}
	if m.session.Apply(ev) {
		m.finish()
		return
	}
	m.publish()
}

func (m *SessionManager) onClosed(gen uint64) {
	if gen != m.gen {
		return
	}
	if m.session.End() {
		m.finish()
	}
}

// finish settles a terminal session state.
func (m *SessionManager) finish() {
	state, msg, err := m.session.Finish()
	out := m.outcome
	m.outcome = nil

	switch state {
	case StateCompleted:
		pc := pendingCommit{message: msg, group: m.group, origin: m.account.Host, outcome: out}
		m.pending = &pc
		m.committing = true
		m.publish()
		go func() {
			group, committed, err := m.commit(context.Background(), pc)
			m.post(func() { m.onCommitted(pc, group, committed, err) })
		}()
	case StateCancelled:
		slog.Info("Exchange cancelled", "message_id", msg.ID)
		deliver(out, Outcome{State: StateCancelled, Message: msg})
		m.publish()
	default:
		slog.Error("Exchange failed", "message_id", msg.ID, "kind", app_errors.Kind(err), "error", err)
		m.lastErr = err
		deliver(out, Outcome{State: StateFailed, Message: msg, Err: err})
		m.publish()
	}
}

// commit writes the completed message and, when the conversation has no
// stored group yet, the group, in one transaction.
func (m *SessionManager) commit(ctx context.Context, pc pendingCommit) (model.Group, model.Message, error) {
	msg := pc.message
	var group model.Group
	err := m.store.Write(ctx, func(repo repository.Repository) error {
		if pc.group != nil {
			g, err := repo.GetGroup(ctx, pc.group.ID)
			switch {
			case err == nil:
				group = *g
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}
		}
		if group.ID == "" {
			group = model.NewGroup(GroupName(msg.Request), pc.origin)
			if err := repo.InsertGroup(ctx, &group); err != nil {
				return err
			}
		}
		msg.GroupID = group.ID
		return repo.InsertMessage(ctx, &msg)
	})
	if err != nil {
		metrics.CommitsTotal.WithLabelValues("error").Inc()
		return model.Group{}, pc.message, err
	}
	metrics.CommitsTotal.WithLabelValues("ok").Inc()
	return group, msg, nil
}

func (m *SessionManager) onCommitted(pc pendingCommit, group model.Group, msg model.Message, err error) {
	m.committing = false
	if err != nil {
		slog.Error("Failed to save exchange", "message_id", pc.message.ID, "error", err)
		m.lastErr = err
		deliver(pc.outcome, Outcome{State: StateCompleted, Message: pc.message, Err: err})
		m.publish()
		return
	}
	slog.Info("Exchange saved", "message_id", msg.ID, "group_id", group.ID)
	if m.pending != nil && m.pending.message.ID == pc.message.ID {
		m.pending = nil
	}
	m.lastErr = nil
	m.setGroup(&group)
	deliver(pc.outcome, Outcome{State: StateCompleted, Message: msg})
	m.publish()
}

// RetryCommit saves a completed exchange whose commit failed.
func (m *SessionManager) RetryCommit(ctx context.Context) error {
	var pc pendingCommit
	var stateErr error
	err := m.do(func() {
		switch {
		case m.committing || m.session.State().Active():
			stateErr = fmt.Errorf("%w: an exchange is in progress", app_errors.ErrBusy)
		case m.pending == nil:
			stateErr = fmt.Errorf("%w: nothing to save", app_errors.ErrConflict)
		default:
			m.committing = true
			pc = *m.pending
			pc.outcome = nil
			m.publish()
		}
	})
	if err != nil {
		return err
	}
	if stateErr != nil {
		return stateErr
	}

	group, msg, err := m.commit(ctx, pc)
	return errors.Join(err, m.do(func() { m.onCommitted(pc, group, msg, err) }))
}

// Cancel aborts the exchange in flight. It is a no-op when idle.
func (m *SessionManager) Cancel() error {
	return m.do(func() {
		if m.session.Cancel() {
			m.finish()
		}
	})
}

// Reset aborts the exchange in flight, if any, and drops the in-progress or
// unsaved message. Stored data is untouched.
func (m *SessionManager) Reset() error {
	return m.do(func() {
		if m.session.Cancel() {
			m.finish()
		}
		m.pending = nil
		m.lastErr = nil
		m.publish()
	})
}

// NewConversation detaches from the active group; the next exchange starts a
// new one.
func (m *SessionManager) NewConversation() error {
	var stateErr error
	err := m.do(func() {
		if m.session.State().Active() || m.committing {
			stateErr = fmt.Errorf("%w: an exchange is in progress", app_errors.ErrBusy)
			return
		}
		if m.pending != nil {
			stateErr = fmt.Errorf("%w: previous answer is not saved, retry or reset first", app_errors.ErrConflict)
			return
		}
		m.lastErr = nil
		m.setGroup(nil)
		m.publish()
	})
	if err != nil {
		return err
	}
	return stateErr
}

// SelectGroup makes a stored group the active conversation.
func (m *SessionManager) SelectGroup(ctx context.Context, groupID string) error {
	var group *model.Group
	err := m.store.Read(ctx, func(repo repository.Repository) error {
		var err error
		group, err = repo.GetGroup(ctx, groupID)
		return err
	})
	if err != nil {
		return mapNotFound(err, "group", groupID)
	}

	var stateErr error
	err = m.do(func() {
		if m.session.State().Active() || m.committing {
			stateErr = fmt.Errorf("%w: an exchange is in progress", app_errors.ErrBusy)
			return
		}
		m.lastErr = nil
		m.setGroup(group)
		m.publish()
	})
	if err != nil {
		return err
	}
	return stateErr
}

// SelectPrompt chooses the system template for later exchanges. An empty id
// clears the selection.
func (m *SessionManager) SelectPrompt(ctx context.Context, promptID string) error {
	if promptID != "" {
		err := m.store.Read(ctx, func(repo repository.Repository) error {
			_, err := repo.GetPrompt(ctx, promptID)
			return err
		})
		if err != nil {
			return mapNotFound(err, "prompt", promptID)
		}
	}
	return m.do(func() {
		m.promptID = promptID
		m.publish()
	})
}

// RenameGroup changes the display name of a group. Blank names are rejected.
func (m *SessionManager) RenameGroup(ctx context.Context, groupID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: group name is empty", app_errors.ErrValidation)
	}
	err := m.store.Write(ctx, func(repo repository.Repository) error {
		return repo.UpdateGroupName(ctx, groupID, name)
	})
	if err != nil {
		return mapNotFound(err, "group", groupID)
	}
	return m.do(func() {
		if m.group != nil && m.group.ID == groupID {
			g := *m.group
			g.Name = name
			m.group = &g
			m.publish()
		}
	})
}

// DeleteGroup removes a group together with its messages.
func (m *SessionManager) DeleteGroup(ctx context.Context, groupID string) error {
	err := m.store.Write(ctx, func(repo repository.Repository) error {
		if _, err := repo.DeleteMessagesByGroup(ctx, groupID); err != nil {
			return err
		}
		return repo.DeleteGroup(ctx, groupID)
	})
	if err != nil {
		return mapNotFound(err, "group", groupID)
	}
	slog.Info("Group deleted", "group_id", groupID)
	return m.do(func() { m.dropGroups([]string{groupID}) })
}

// PruneEmptyGroups deletes every group without messages and reports how many
// were removed. Eligibility is decided inside the deleting transaction.
func (m *SessionManager) PruneEmptyGroups(ctx context.Context) (int, error) {
	var ids []string
	err := m.store.Write(ctx, func(repo repository.Repository) error {
		var err error
		if ids, err = repo.EmptyGroupIDs(ctx); err != nil {
			return err
		}
		for _, id := range ids {
			if err := repo.DeleteGroup(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		slog.Info("Pruned empty groups", "count", len(ids))
	}
	return len(ids), m.do(func() { m.dropGroups(ids) })
}

// ClearHistory deletes every group and message. Prompts are kept.
func (m *SessionManager) ClearHistory(ctx context.Context) error {
	err := m.store.Write(ctx, func(repo repository.Repository) error {
		return repo.DeleteAllHistory(ctx)
	})
	if err != nil {
		return err
	}
	slog.Info("Conversation history cleared")
	return m.do(func() {
		m.setGroup(nil)
		m.publish()
	})
}

// RunOnce applies a template to text and streams the answer to onDelta. It is
// independent of the active conversation and nothing is stored.
func (m *SessionManager) RunOnce(ctx context.Context, promptID, text string, onDelta func(string)) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", app_errors.ErrValidation)
	}
	account, err := m.accounts.CurrentAccount(ctx)
	if err != nil {
		return "", err
	}
	req, err := m.assembler.AssembleOnce(ctx, promptID, text)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan llm.StreamResponse, 64)
	go func() { _ = m.provider.GenerateStream(ctx, *account, req, ch) }()

	var b strings.Builder
	for ev := range ch {
		if ev.Err != nil {
			return "", ev.Err
		}
		if ev.Content != "" {
			b.WriteString(ev.Content)
			if onDelta != nil {
				onDelta(ev.Content)
			}
		}
		if ev.Done {
			return b.String(), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: stream closed before completion", app_errors.ErrTransport)
}

// Snapshot returns the latest published session state.
func (m *SessionManager) Snapshot() model.SessionSnapshot {
	return m.hub.Latest()
}

// Subscribe streams session snapshots; slow consumers skip to the latest.
func (m *SessionManager) Subscribe() (<-chan model.SessionSnapshot, func()) {
	return m.hub.Subscribe()
}

// Close cancels the exchange in flight and stops the manager.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		_ = m.Cancel()
		close(m.quit)
		<-m.done
		m.cancel()
		m.hub.Close()
	})
}

func (m *SessionManager) setGroup(g *model.Group) {
	m.group = g
	if m.watcher == nil {
		return
	}
	if g == nil {
		m.watcher.SetActiveGroup("")
		return
	}
	m.watcher.SetActiveGroup(g.ID)
}

func (m *SessionManager) dropGroups(ids []string) {
	if m.group != nil && slices.Contains(ids, m.group.ID) {
		m.setGroup(nil)
		m.publish()
	}
}

func (m *SessionManager) publish() {
	snap := model.SessionSnapshot{
		Loading:  m.session.State().Active() || m.committing,
		State:    m.session.State().String(),
		Message:  m.session.Message(),
		PromptID: m.promptID,
	}
	if m.pending != nil {
		snap.Message = m.pending.message
	}
	if m.group != nil {
		g := *m.group
		snap.Group = &g
	}
	if m.lastErr != nil {
		snap.Err = &model.SessionError{Kind: app_errors.Kind(m.lastErr), Message: m.lastErr.Error()}
	}
	m.hub.Publish(snap)
}

// GroupName derives a conversation name from its first request: whitespace
// removed, at most ten characters, the placeholder when nothing is left.
func GroupName(request string) string {
	runes := []rune(stripSpace(request))
	if len(runes) > groupNameRunes {
		runes = runes[:groupNameRunes]
	}
	if len(runes) == 0 {
		return model.DefaultGroupName
	}
	return string(runes)
}

func deliver(out chan Outcome, o Outcome) {
	if out == nil {
		return
	}
	select {
	case out <- o:
	default:
	}
}

func mapNotFound(err error, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", app_errors.ErrNotFound, what, id)
	}
	return err
}
