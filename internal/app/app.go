package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"openchat/assistant/internal/api"
	"openchat/assistant/internal/config"
	"openchat/assistant/internal/database"
	"openchat/assistant/internal/llm"
	"openchat/assistant/internal/model"
	"openchat/assistant/internal/observer"
	"openchat/assistant/internal/prefs"
	"openchat/assistant/internal/repository"
	"openchat/assistant/internal/service"
)

const usage = `usage: assistant [serve|chat]

  serve  run the HTTP API (default)
  chat   start an interactive conversation in the terminal`

// App holds the wired components of a running assistant.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Prefs    *prefs.Store
	Store    *repository.Store
	Observer *observer.Observer
	Settings *service.SettingsService
	Prompts  *service.PromptService
	History  *service.HistoryService
	Models   *service.ModelService
	Sessions *service.SessionManager
	Server   *http.Server

	stopObserving func()
}

// NewApp opens the stores, seeds defaults and wires the services.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)

	p, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	a := &App{Config: cfg, DB: db, Prefs: p, Store: repository.NewStore(db)}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	ctx := context.Background()
	cfg := a.Config

	provider := llm.NewOpenAIProvider(&http.Client{})
	a.Settings = service.NewSettingsService(a.Prefs, provider, cfg.HistoryLimit)

	seed, err := config.LoadAccountsFile(cfg.AccountsFile)
	if err != nil {
		return err
	}
	if n, err := a.Settings.SeedAccounts(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	} else if n > 0 {
		slog.Info("Seeded accounts from file", "file", cfg.AccountsFile, "count", n)
	}

	a.Prompts = service.NewPromptService(a.Store)
	if err := a.Prompts.SeedBuiltins(ctx); err != nil {
		return fmt.Errorf("failed to seed prompts: %w", err)
	}
	a.History = service.NewHistoryService(a.Store)
	a.Models = service.NewModelService(a.Settings, provider)

	a.Observer = observer.New(a.Store, cfg.DatabasePath, cfg.WatchDebounce)
	a.stopObserving = a.Observer.Observe(
		func(c model.Counts) {
			slog.Debug("Store counts changed", "groups", c.Groups, "messages", c.Messages, "prompts", c.Prompts)
		},
		func(err error) {
			slog.Error("Store counts are no longer updated", "error", err)
		},
	)

	a.Sessions = service.NewSessionManager(a.Store, a.Settings, provider, a.Observer, service.SessionOptions{
		RequestTimeout: cfg.RequestTimeout,
	})

	router := api.NewRouter(api.Handlers{
		Chat:     api.NewChatHandler(a.Sessions, a.History, a.Observer, cfg.ThrottleInterval),
		Prompts:  api.NewPromptHandler(a.Prompts),
		Settings: api.NewSettingsHandler(a.Settings),
		Models:   api.NewModelHandler(a.Models),
	})
	a.Server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}
	return nil
}

// Close stops the session manager and the observer and closes both stores.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.stopObserving != nil {
		a.stopObserving()
	}
	if a.Observer != nil {
		a.Observer.Close()
	}
	var errs []error
	if a.Prefs != nil {
		errs = append(errs, a.Prefs.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

// Run starts the assistant in the mode named by args and returns the process
// exit code.
func Run(args []string) int {
	mode := "serve"
	if len(args) > 0 {
		mode = args[0]
	}
	if mode != "serve" && mode != "chat" {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	cfg, v, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	// The terminal belongs to the conversation in chat mode.
	var logOut io.Writer = os.Stdout
	if mode == "chat" {
		logOut = os.Stderr
	}
	setupLogger(cfg.LogLevel, logOut)
	logConfigSource(v)

	a, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to close application", "error", err)
		}
	}()

	if mode == "chat" {
		r := newREPL(a.Sessions, a.History, a.Prompts, os.Stdout, cfg.ThrottleInterval)
		if err := r.run(context.Background(), filepath.Join(filepath.Dir(cfg.PrefsPath), "chat_history")); err != nil {
			slog.Error("Chat ended with error", "error", err)
			return 1
		}
		return 0
	}
	return a.serve()
}

func (a *App) serve() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", a.Server.Addr)
		errCh <- a.Server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
			return 1
		}
	}
	return 0
}

func logConfigSource(v *viper.Viper) {
	configFileUsed := v.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string, w io.Writer) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
