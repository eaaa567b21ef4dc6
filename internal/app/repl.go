package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/interfaces"
	"openchat/assistant/internal/service"
	"openchat/assistant/internal/throttle"
)

const replHelp = `Commands:
  /new              start a new conversation
  /groups           list stored conversations
  /open <id>        continue a stored conversation
  /rename <name>    rename the active conversation
  /delete           delete the active conversation
  /prune            delete conversations without messages
  /clear            delete all conversations
  /prompts          list prompt templates
  /prompt <id|none> choose the template for new messages
  /ask <text>       one-off question with the chosen template, not stored
  /retry            save the last answer again after a failed save
  /help             show this help
  /quit             leave the chat
Anything else is sent as a message. Ctrl-C cancels a running answer.`

// repl is the terminal front end of the session manager.
type repl struct {
	sessions interfaces.SessionManager
	history  interfaces.HistoryService
	prompts  interfaces.PromptService
	interval time.Duration

	mu  sync.Mutex
	out io.Writer
}

func newREPL(sessions interfaces.SessionManager, history interfaces.HistoryService, prompts interfaces.PromptService, out io.Writer, interval time.Duration) *repl {
	return &repl{sessions: sessions, history: history, prompts: prompts, out: out, interval: interval}
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// run reads lines until the user quits or input ends. Line history is kept in
// historyFile.
func (r *repl) run(ctx context.Context, historyFile string) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = line.WriteHistory(f)
	}()

	r.printf("Type /help for commands.\n")
	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.printf("\n")
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		more, err := r.handle(ctx, input)
		if err != nil {
			r.printf("[Error] %v\n", err)
		}
		if !more {
			return nil
		}
	}
}

// handle executes one line of input. It returns false when the user asked to
// leave.
func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	if !strings.HasPrefix(input, "/") {
		return true, r.send(ctx, input)
	}

	command, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "/quit", "/q", "/exit":
		return false, nil
	case "/help", "/h", "/":
		r.printf("%s\n", replHelp)
	case "/new":
		if err := r.sessions.NewConversation(); err != nil {
			return true, err
		}
		r.printf("[New conversation]\n")
	case "/groups":
		return true, r.listGroups(ctx)
	case "/open":
		if arg == "" {
			return true, errors.New("usage: /open <id>")
		}
		return true, r.openGroup(ctx, arg)
	case "/rename":
		id, err := r.activeGroupID()
		if err != nil {
			return true, err
		}
		if err := r.sessions.RenameGroup(ctx, id, arg); err != nil {
			return true, err
		}
		r.printf("[Renamed to %q]\n", arg)
	case "/delete":
		id, err := r.activeGroupID()
		if err != nil {
			return true, err
		}
		if err := r.sessions.DeleteGroup(ctx, id); err != nil {
			return true, err
		}
		r.printf("[Conversation deleted]\n")
	case "/prune":
		n, err := r.sessions.PruneEmptyGroups(ctx)
		if err != nil {
			return true, err
		}
		r.printf("[Removed %d empty conversations]\n", n)
	case "/clear":
		if err := r.sessions.ClearHistory(ctx); err != nil {
			return true, err
		}
		r.printf("[History cleared]\n")
	case "/prompts":
		return true, r.listPrompts(ctx)
	case "/prompt":
		id := arg
		if strings.EqualFold(id, "none") {
			id = ""
		}
		if err := r.sessions.SelectPrompt(ctx, id); err != nil {
			return true, err
		}
		r.printf("[Prompt set]\n")
	case "/ask":
		return true, r.ask(ctx, arg)
	case "/retry":
		if err := r.sessions.RetryCommit(ctx); err != nil {
			return true, err
		}
		r.printf("[Saved]\n")
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func (r *repl) activeGroupID() (string, error) {
	g := r.sessions.Snapshot().Group
	if g == nil {
		return "", fmt.Errorf("%w: no stored conversation is active", app_errors.ErrConflict)
	}
	return g.ID, nil
}

func (r *repl) listGroups(ctx context.Context) error {
	groups, err := r.history.Groups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		r.printf("No conversations yet.\n")
		return nil
	}
	for _, g := range groups {
		r.printf("%s  %-12s %3d  %s\n", g.ID, g.Name, g.MessageCount, g.Timestamp.Local().Format(time.DateTime))
	}
	return nil
}

func (r *repl) openGroup(ctx context.Context, id string) error {
	if err := r.sessions.SelectGroup(ctx, id); err != nil {
		return err
	}
	messages, err := r.history.Messages(ctx, id)
	if err != nil {
		return err
	}
	for _, m := range messages {
		r.printf("> %s\n%s\n\n", m.Request, m.Content)
	}
	return nil
}

func (r *repl) listPrompts(ctx context.Context) error {
	prompts, err := r.prompts.List(ctx)
	if err != nil {
		return err
	}
	selected := r.sessions.Snapshot().PromptID
	for _, p := range prompts {
		mark := " "
		if p.ID == selected {
			mark = "*"
		}
		r.printf("%s %s  %s\n", mark, p.ID, p.Title)
	}
	return nil
}

func (r *repl) ask(ctx context.Context, text string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	_, err := r.sessions.RunOnce(ctx, r.sessions.Snapshot().PromptID, text, func(delta string) {
		r.printf("%s", delta)
	})
	r.printf("\n")
	return err
}

// send runs one exchange and prints the answer as it streams in.
func (r *repl) send(ctx context.Context, text string) error {
	snaps, unsubscribe := r.sessions.Subscribe()
	defer unsubscribe()

	outcome, err := r.sessions.Send(ctx, service.SendRequest{Text: text})
	if err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var printedMu sync.Mutex
	printed := 0
	show := func(content string) {
		printedMu.Lock()
		defer printedMu.Unlock()
		if len(content) > printed {
			r.printf("%s", content[printed:])
			printed = len(content)
		}
	}

	th := throttle.New(r.interval)
	defer th.Stop()

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			if snap.Loading {
				content := snap.Message.Content
				th.Do(func() { show(content) })
			}
		case <-interrupt:
			_ = r.sessions.Cancel()
		case <-ctx.Done():
			_ = r.sessions.Cancel()
			return ctx.Err()
		case o := <-outcome:
			th.Stop()
			show(o.Message.Content)
			r.printf("\n")
			switch o.State {
			case service.StateCancelled:
				r.printf("[Cancelled]\n")
			case service.StateFailed:
				return o.Err
			case service.StateCompleted:
				if o.Err != nil {
					return fmt.Errorf("answer not saved, type /retry: %w", o.Err)
				}
			}
			return nil
		}
	}
}
