// Package watch keeps a long-lived subscription to an application's events.
// Delivery is at-least-once and in sequence order; the cursor only moves after
// the handler accepted an event.
package watch

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlexZinkM/linera-client/internal/common"
	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/metrics"
	"github.com/AlexZinkM/linera-client/internal/model"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Handler consumes one event. A non-nil error stops the subscription and
// leaves the cursor before that event.
type Handler func(ctx context.Context, ev model.Event) error

// Config controls reconnection.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig: 500ms doubling up to 30s
func DefaultConfig() Config {
	return Config{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Subscriber) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCursor starts the subscription after sequence.
func WithCursor(sequence uint64) Option {
	return func(s *Subscriber) {
		s.cursor.Store(sequence)
	}
}

// WithObserver registers fn to be called on every state change.
func WithObserver(fn func(State)) Option {
	return func(s *Subscriber) {
		s.observe = fn
	}
}

// Subscriber watches one application. It can be run again after it stopped
// and resumes at its cursor.
type Subscriber struct {
	gw      gateway.Gateway
	appID   string
	cfg     Config
	log     *zap.Logger
	observe func(State)

	cursor atomic.Uint64
	state  atomic.Int32

	mu      sync.Mutex
	running bool
}

// New creates a stopped Subscriber for applicationID.
func New(gw gateway.Gateway, applicationID string, cfg Config, opts ...Option) *Subscriber {
	s := &Subscriber{
		gw:    gw,
		appID: applicationID,
		cfg:   cfg,
		log:   zap.NewNop(),
	}
	s.state.Store(int32(StateStopped))
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("applicationId", applicationID))
	return s
}

// ApplicationID returns the watched application.
func (s *Subscriber) ApplicationID() string {
	return s.appID
}

// Cursor returns the sequence number of the last delivered event.
func (s *Subscriber) Cursor() uint64 {
	return s.cursor.Load()
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

type handlerError struct {
	err error
}

func (e *handlerError) Error() string { return e.err.Error() }
func (e *handlerError) Unwrap() error { return e.err }

// Run streams events to handler until ctx is cancelled, the node closes the
// stream, the handler fails or the node rejects the subscription.
//
// Cancellation and a graceful close return nil. A handler failure returns the
// handler's error. A subscription rejected by the node returns an
// *model.OpError with phase subscribe. Transport failures and timeouts are
// retried forever with exponential backoff.
func (s *Subscriber) Run(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return model.ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	b := common.NewExponentialBackOff(s.cfg.InitialBackoff, s.cfg.MaxBackoff)
	s.enter(StateConnecting)

	for {
		if ctx.Err() != nil {
			return s.stop(nil)
		}

		stream, err := s.gw.Subscribe(ctx, s.appID, s.Cursor())
		if err != nil {
			if ctx.Err() != nil {
				return s.stop(nil)
			}
			if model.IsRetryable(err) {
				if !s.reconnect(ctx, b, err) {
					return s.stop(nil)
				}
				continue
			}
			s.log.Error("subscription rejected", zap.Error(err))
			return s.stop(&model.OpError{Phase: model.PhaseSubscribe, Err: err})
		}

		s.enter(StateStreaming)
		err = s.consume(ctx, stream, handler, b)
		if cerr := stream.Close(); cerr != nil {
			s.log.Debug("stream close failed", zap.Error(cerr))
		}

		var herr *handlerError
		switch {
		case ctx.Err() != nil:
			return s.stop(nil)
		case errors.Is(err, io.EOF):
			s.log.Info("stream closed by node", zap.Uint64("cursor", s.Cursor()))
			return s.stop(nil)
		case errors.As(err, &herr):
			s.log.Warn("handler failed", zap.Uint64("cursor", s.Cursor()), zap.Error(herr.err))
			return s.stop(herr.err)
		case model.IsRetryable(err):
			if !s.reconnect(ctx, b, err) {
				return s.stop(nil)
			}
		default:
			s.log.Error("stream failed", zap.Error(err))
			return s.stop(&model.OpError{Phase: model.PhaseSubscribe, Err: err})
		}
	}
}

func (s *Subscriber) consume(ctx context.Context, stream gateway.Stream, handler Handler, b backoff.BackOff) error {
	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			return err
		}

		cursor := s.Cursor()
		if ev.Sequence <= cursor {
			s.log.Debug("dropping replayed event", zap.Uint64("sequence", ev.Sequence), zap.Uint64("cursor", cursor))
			continue
		}
		if ev.ReceivedAt.IsZero() {
			ev.ReceivedAt = time.Now().UTC()
		}

		if err := handler(ctx, ev); err != nil {
			return &handlerError{err: err}
		}
		s.cursor.Store(ev.Sequence)
		metrics.RecordWatchEvent()
		b.Reset()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// reconnect waits out the next backoff interval. It returns false if ctx ended
// while waiting.
func (s *Subscriber) reconnect(ctx context.Context, b backoff.BackOff, cause error) bool {
	s.enter(StateReconnecting)
	metrics.RecordWatchReconnect()

	wait := b.NextBackOff()
	s.log.Warn("stream interrupted, reconnecting",
		zap.Duration("wait", wait),
		zap.Uint64("cursor", s.Cursor()),
		zap.Error(cause),
	)
	if !common.Sleep(ctx, wait) {
		return false
	}
	s.enter(StateConnecting)
	return true
}

func (s *Subscriber) stop(err error) error {
	s.enter(StateStopped)
	return err
}

func (s *Subscriber) enter(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	s.log.Debug("watch state", zap.Stringer("from", from), zap.Stringer("to", to))
	if s.observe != nil {
		s.observe(to)
	}
}
