package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/interfaces"
	"openchat/assistant/internal/service"
	"openchat/assistant/internal/throttle"
)

// ChatHandler serves the active session and the stored conversations.
type ChatHandler struct {
	sessions interfaces.SessionManager
	history  interfaces.HistoryService
	counts   interfaces.CountsSource
	interval time.Duration
}

// NewChatHandler creates a ChatHandler. interval bounds how often streamed
// session updates are written to a client.
func NewChatHandler(sessions interfaces.SessionManager, history interfaces.HistoryService, counts interfaces.CountsSource, interval time.Duration) *ChatHandler {
	return &ChatHandler{sessions: sessions, history: history, counts: counts, interval: interval}
}

// GetState godoc
// @Summary      Current session state
// @Tags         Session
// @Produce      json
// @Success      200  {object}  StateResponse
// @Router       /api/v1/session [get]
func (h *ChatHandler) GetState(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, StateResponse{
		Session: h.sessions.Snapshot(),
		Counts:  h.counts.Counts(),
	})
}

// HandleEvents streams session snapshots and store counts as SSE until the
// client disconnects. Snapshots are throttled; counts are sent as they change.
func (h *ChatHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	snaps, stopSnaps := h.sessions.Subscribe()
	defer stopSnaps()
	counts, stopCounts := h.counts.Subscribe()
	defer stopCounts()

	startStream(w)
	sw := &streamWriter{w: w}
	th := throttle.New(h.interval)
	defer th.Stop()

	for !sw.broken() {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			th.Do(func() { sw.emit("snapshot", snap) })
		case c, ok := <-counts:
			if !ok {
				return
			}
			sw.emit("counts", c)
		}
	}
	slog.Info("Event stream closed, client likely disconnected")
}

// HandleSendMessage godoc
// @Summary      Send a message
// @Description  Starts an exchange and streams the in-progress message until it ends. The final `done` event carries the outcome.
// @Tags         Session
// @Accept       json
// @Produce      text/event-stream
// @Param        message  body  SendMessageRequest  true  "User turn"
// @Success      200  {object}  OutcomeEvent
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      412  {object}  ErrorResponse
// @Router       /api/v1/session/messages [post]
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}

	snaps, stop := h.sessions.Subscribe()
	defer stop()

	outcome, err := h.sessions.Send(r.Context(), service.SendRequest{
		Text:     req.Text,
		ImageRef: req.ImageRef,
		FileRef:  req.FileRef,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	startStream(w)
	sw := &streamWriter{w: w}
	th := throttle.New(h.interval)

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			if snap.Loading {
				th.Do(func() { sw.emit("message", snap.Message) })
			}
		case o := <-outcome:
			th.Stop()
			sw.emit("done", outcomeEvent(o))
			return
		case <-r.Context().Done():
			th.Stop()
			slog.Info("Client disconnected, exchange continues in the background")
			return
		}
	}
}

// HandleCancel aborts the exchange in flight.
func (h *ChatHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, h.sessions.Cancel())
}

// HandleReset drops the in-progress or unsaved message.
func (h *ChatHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, h.sessions.Reset())
}

// HandleNewConversation detaches the session from its group.
func (h *ChatHandler) HandleNewConversation(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, h.sessions.NewConversation())
}

// HandleRetryCommit saves a completed exchange whose save failed.
func (h *ChatHandler) HandleRetryCommit(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, h.sessions.RetryCommit(r.Context()))
}

func (h *ChatHandler) HandleSelectGroup(w http.ResponseWriter, r *http.Request) {
	var req SelectGroupRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	h.respondStatus(w, h.sessions.SelectGroup(r.Context(), req.GroupID))
}

func (h *ChatHandler) HandleSelectPrompt(w http.ResponseWriter, r *http.Request) {
	var req SelectPromptRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	h.respondStatus(w, h.sessions.SelectPrompt(r.Context(), req.PromptID))
}

// HandleRunOnce applies a template to a text and returns the whole answer.
// Nothing is stored.
func (h *ChatHandler) HandleRunOnce(w http.ResponseWriter, r *http.Request) {
	var req RunOnceRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	content, err := h.sessions.RunOnce(r.Context(), req.PromptID, req.Text, nil)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, RunOnceResponse{Content: content})
}

// GetGroups godoc
// @Summary      List conversations
// @Tags         Groups
// @Produce      json
// @Success      200  {array}  model.GroupSummary
// @Router       /api/v1/groups [get]
func (h *ChatHandler) GetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.history.Groups(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, groups)
}

func (h *ChatHandler) GetGroupMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.history.Messages(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// HandleRenameGroup godoc
// @Summary      Rename a conversation
// @Tags         Groups
// @Accept       json
// @Produce      json
// @Param        groupID  path  string  true  "Group ID"
// @Param        request  body  RenameGroupRequest  true  "New name"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/v1/groups/{groupID}/name [put]
func (h *ChatHandler) HandleRenameGroup(w http.ResponseWriter, r *http.Request) {
	var req RenameGroupRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	h.respondStatus(w, h.sessions.RenameGroup(r.Context(), chi.URLParam(r, "groupID"), req.Name))
}

func (h *ChatHandler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, h.sessions.DeleteGroup(r.Context(), chi.URLParam(r, "groupID")))
}

func (h *ChatHandler) HandlePruneGroups(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessions.PruneEmptyGroups(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, PruneResponse{Removed: n})
}

// HandleClearHistory deletes every conversation.
func (h *ChatHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	h.respondStatus(w, h.sessions.ClearHistory(r.Context()))
}

func (h *ChatHandler) respondStatus(w http.ResponseWriter, err error) {
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func outcomeEvent(o service.Outcome) OutcomeEvent {
	ev := OutcomeEvent{State: o.State.String(), Message: o.Message}
	if o.Err != nil {
		_, message := statusFor(o.Err)
		ev.Error = &ErrorResponse{Error: message, Kind: app_errors.Kind(o.Err)}
	}
	return ev
}

// streamWriter serializes SSE writes coming from the handler and from
// throttled callbacks, and remembers the first write failure.
type streamWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	failed bool
}

func (s *streamWriter) emit(event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return
	}
	if err := writeStreamEvent(s.w, event, data); err != nil {
		slog.Warn("Could not write to event stream", "event", event, "error", err)
		s.failed = true
	}
}

func (s *streamWriter) broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
