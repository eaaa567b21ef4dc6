package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/llm"
	"openchat/assistant/internal/metrics"
	"openchat/assistant/internal/model"
)

// StreamState is the lifecycle position of a StreamSession.
type StreamState int

const (
	StateIdle StreamState = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("StreamState(%d)", int(s))
}

// Terminal reports whether the state ends a request.
func (s StreamState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Active reports whether a request is in flight.
func (s StreamState) Active() bool {
	return s == StateRequesting || s == StateStreaming
}

// StreamSession is one request/response cycle with the completion endpoint.
// It is not safe for concurrent use; the SessionManager actor owns it.
type StreamSession struct {
	provider llm.Provider
	timeout  time.Duration

	state   StreamState
	message model.Message
	err     error
	cancel  context.CancelFunc
	started time.Time
}

// NewStreamSession returns an idle session. A zero timeout means requests are
// bounded only by the parent context.
func NewStreamSession(provider llm.Provider, timeout time.Duration) *StreamSession {
	return &StreamSession{provider: provider, timeout: timeout, message: model.NewMessage()}
}

func (s *StreamSession) State() StreamState { return s.state }

// Message returns the in-progress message, including every delta applied so far.
func (s *StreamSession) Message() model.Message { return s.message }

// Begin reserves the session for msg and moves to Requesting.
func (s *StreamSession) Begin(msg model.Message) error {
	if s.state != StateIdle {
		return fmt.Errorf("%w: a request is already %s", app_errors.ErrBusy, s.state)
	}
	s.state = StateRequesting
	s.message = msg
	s.err = nil
	s.started = time.Now()
	return nil
}

// Start dispatches the request. Deltas arrive on the returned channel, which
// the provider closes when the stream ends; each one is fed back through Apply.
func (s *StreamSession) Start(parent context.Context, account model.Account, req *llm.GenerateRequest) (<-chan llm.StreamResponse, error) {
	if s.state != StateRequesting {
		return nil, fmt.Errorf("%w: cannot start from %s", app_errors.ErrConflict, s.state)
	}

	var ctx context.Context
	if s.timeout > 0 {
		ctx, s.cancel = context.WithTimeout(parent, s.timeout)
	} else {
		ctx, s.cancel = context.WithCancel(parent)
	}

	ch := make(chan llm.StreamResponse, 64)
	go func() {
		if err := s.provider.GenerateStream(ctx, account, req, ch); err != nil {
			slog.Debug("Completion stream ended with error", "model", req.Model, "error", err)
		}
	}()
	return ch, nil
}

// Apply folds one stream event into the session. It reports whether the event
// moved the session into a terminal state. Events received outside
// Requesting/Streaming are ignored.
func (s *StreamSession) Apply(ev llm.StreamResponse) bool {
	if !s.state.Active() {
		return false
	}
	switch {
	case ev.Err != nil:
		s.fail(ev.Err)
		return true
	case ev.Done:
		s.message.Content += ev.Content
		s.terminate(StateCompleted)
		return true
	}
	if s.state == StateRequesting {
		s.state = StateStreaming
	}
	if ev.Content != "" {
		s.message.Content += ev.Content
		metrics.StreamChunks.Inc()
	}
	return false
}

// End is called when the event channel closes. A stream that closes without
// an end-of-stream event failed.
func (s *StreamSession) End() bool {
	if !s.state.Active() {
		return false
	}
	s.fail(fmt.Errorf("%w: stream closed before completion", app_errors.ErrTransport))
	return true
}

// Fail aborts an active request with err.
func (s *StreamSession) Fail(err error) bool {
	if !s.state.Active() {
		return false
	}
	s.fail(err)
	return true
}

// Cancel aborts an active request. Deltas arriving afterwards are ignored.
func (s *StreamSession) Cancel() bool {
	if !s.state.Active() {
		return false
	}
	s.terminate(StateCancelled)
	return true
}

// Finish returns the terminal state, the finalized message and the failure, if
// any, and makes the session idle again with a fresh blank message.
func (s *StreamSession) Finish() (StreamState, model.Message, error) {
	state, msg, err := s.state, s.message, s.err
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateIdle
	s.message = s.message.Reset()
	s.err = nil
	return state, msg, err
}

func (s *StreamSession) fail(err error) {
	if !app_errors.IsKnown(err) {
		err = fmt.Errorf("%w: %w", app_errors.ErrTransport, err)
	}
	s.err = err
	s.terminate(StateFailed)
}

func (s *StreamSession) terminate(state StreamState) {
	s.state = state
	if s.cancel != nil {
		s.cancel()
	}
	metrics.StreamsTotal.WithLabelValues(state.String()).Inc()
	metrics.StreamDuration.Observe(time.Since(s.started).Seconds())
}
