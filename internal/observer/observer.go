// Package observer keeps a live view of the persisted counts: groups, messages
// of the active group and prompts. It recomputes after every committed write,
// whether the write came from this process or from another connection to the
// same database file.
package observer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"openchat/assistant/internal/metrics"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/notify"
	"openchat/assistant/internal/repository"
)

// Source is the store the observer reads from.
type Source interface {
	Read(ctx context.Context, fn func(repo repository.Repository) error) error
	Subscribe() (<-chan struct{}, func())
}

type registration struct {
	cancel  context.CancelFunc
	trigger chan struct{}
}

// Observer is the single change observer of a process.
type Observer struct {
	src      Source
	dbPath   string
	debounce time.Duration
	hub      *notify.Hub[model.Counts]

	mu          sync.Mutex
	activeGroup string
	current     *registration
}

// New returns an observer over src. dbPath is the database file watched for
// writes made outside this process; an empty path disables that watch.
func New(src Source, dbPath string, debounce time.Duration) *Observer {
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	return &Observer{
		src:      src,
		dbPath:   dbPath,
		debounce: debounce,
		hub:      notify.NewHub(model.Counts{}),
	}
}

// Observe starts a standing watch. onChange receives the recomputed counts
// right away and after every change; onError is called at most once, after
// which observation stops. A previous registration is cancelled. The returned
// function cancels this registration.
func (o *Observer) Observe(onChange func(model.Counts), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	reg := &registration{cancel: cancel, trigger: make(chan struct{}, 1)}

	o.mu.Lock()
	if o.current != nil {
		o.current.cancel()
	}
	o.current = reg
	o.mu.Unlock()

	commits, unsubscribe := o.src.Subscribe()

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	var watcher *fsnotify.Watcher
	if o.dbPath != "" {
		w, err := o.watch()
		if err != nil {
			slog.Warn("External database writes will not be observed", "path", o.dbPath, "error", err)
		} else {
			watcher = w
			fsEvents, fsErrors = w.Events, w.Errors
		}
	}

	go func() {
		defer unsubscribe()
		if watcher != nil {
			defer func() { _ = watcher.Close() }()
		}

		var debounceC <-chan time.Time
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		refresh := func() bool {
			counts, err := o.compute(ctx)
			if ctx.Err() != nil {
				return false
			}
			if err != nil {
				slog.Error("Change observer stopped", "error", err)
				if onError != nil {
					onError(err)
				}
				return false
			}
			if !o.publish(ctx, reg, counts) {
				return false
			}
			metrics.ObserverDeliveries.Inc()
			if onChange != nil {
				onChange(counts)
			}
			return true
		}

		if !refresh() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-commits:
			case <-reg.trigger:
			case ev, ok := <-fsEvents:
				if !ok {
					fsEvents = nil
					continue
				}
				if !o.isDatabaseFile(ev.Name) || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(o.debounce)
				} else {
					timer.Reset(o.debounce)
				}
				debounceC = timer.C
				continue
			case err, ok := <-fsErrors:
				if !ok {
					fsErrors = nil
					continue
				}
				slog.Warn("Database file watch error", "error", err)
				continue
			case <-debounceC:
				debounceC = nil
			}
			if !refresh() {
				return
			}
		}
	}()

	return func() {
		cancel()
		o.mu.Lock()
		if o.current == reg {
			o.current = nil
		}
		o.mu.Unlock()
	}
}

// publish hands counts to the hub unless reg has been cancelled or replaced.
// The check and the publish share o.mu with re-registration, so a superseded
// registration cannot overwrite a newer value.
func (o *Observer) publish(ctx context.Context, reg *registration, counts model.Counts) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != reg || ctx.Err() != nil {
		return false
	}
	o.hub.Publish(counts)
	return true
}

// SetActiveGroup changes the group whose messages are counted. An empty id
// counts nothing.
func (o *Observer) SetActiveGroup(groupID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeGroup == groupID {
		return
	}
	o.activeGroup = groupID
	if o.current != nil {
		select {
		case o.current.trigger <- struct{}{}:
		default:
		}
	}
}

// Counts returns the last delivered counts.
func (o *Observer) Counts() model.Counts {
	return o.hub.Latest()
}

// Subscribe returns the latest counts and every later delivery, skipping
// values the consumer was too slow to receive.
func (o *Observer) Subscribe() (<-chan model.Counts, func()) {
	return o.hub.Subscribe()
}

// Close cancels the current registration and closes subscriber channels.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.current != nil {
		o.current.cancel()
		o.current = nil
	}
	o.mu.Unlock()
	o.hub.Close()
}

func (o *Observer) compute(ctx context.Context) (model.Counts, error) {
	o.mu.Lock()
	groupID := o.activeGroup
	o.mu.Unlock()

	var counts model.Counts
	err := o.src.Read(ctx, func(repo repository.Repository) error {
		var err error
		if counts.Groups, err = repo.CountGroups(ctx); err != nil {
			return err
		}
		if groupID != "" {
			if counts.Messages, err = repo.CountMessages(ctx, groupID); err != nil {
				return err
			}
		}
		counts.Prompts, err = repo.CountPrompts(ctx)
		return err
	})
	if err != nil {
		return model.Counts{}, fmt.Errorf("could not compute counts: %w", err)
	}
	return counts, nil
}

// watch observes the directory holding the database, since SQLite creates and
// removes the WAL and journal files beside it.
func (o *Observer) watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(o.dbPath)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (o *Observer) isDatabaseFile(name string) bool {
	base := filepath.Base(o.dbPath)
	switch filepath.Base(name) {
	case base, base + "-wal", base + "-journal":
		return true
	}
	return false
}
