// Package gatewaytest provides a scripted in-memory gateway for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/model"
)

// HandlerFunc answers one request method.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Call is a recorded request.
type Call struct {
	Method string
	Params json.RawMessage
}

// SubscribeCall is a recorded Subscribe invocation.
type SubscribeCall struct {
	ApplicationID string
	After         uint64
}

// Script describes what one Subscribe call yields.
type Script struct {
	// Err is returned by Subscribe itself.
	Err error
	// Events are delivered in order.
	Events []model.Event
	// End is returned by Next after the events; nil means io.EOF.
	End error
	// Hold blocks Next after the events until the context ends or the stream
	// is closed.
	Hold bool
}

// Fake implements gateway.Gateway. Subscribe calls beyond the scripted ones
// return a stream that holds without events.
type Fake struct {
	mu         sync.Mutex
	handlers   map[string]HandlerFunc
	calls      []Call
	scripts    []Script
	subscribes []SubscribeCall
	open       int
}

var _ gateway.Gateway = (*Fake)(nil)

// New creates an empty fake.
func New() *Fake {
	return &Fake{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for method.
func (f *Fake) Handle(method string, h HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Respond makes method always succeed with result.
func (f *Fake) Respond(method string, result any) {
	f.Handle(method, func(context.Context, json.RawMessage) (any, error) {
		return result, nil
	})
}

// AddScripts queues scripts for subsequent Subscribe calls.
func (f *Fake) AddScripts(scripts ...Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, scripts...)
}

// Send implements gateway.Gateway.
func (f *Fake) Send(ctx context.Context, req gateway.Request) (gateway.Response, error) {
	if err := ctx.Err(); err != nil {
		return gateway.Response{}, err
	}
	params, err := json.Marshal(req.Params)
	if err != nil {
		return gateway.Response{}, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: req.Method, Params: params})
	h, ok := f.handlers[req.Method]
	f.mu.Unlock()

	if !ok {
		return gateway.Response{}, &model.NodeError{Code: -32601, Message: fmt.Sprintf("method %s not found", req.Method)}
	}
	result, err := h(ctx, params)
	if err != nil {
		return gateway.Response{}, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return gateway.Response{}, err
	}
	return gateway.Response{Result: raw}, nil
}

// Subscribe implements gateway.Gateway.
func (f *Fake) Subscribe(ctx context.Context, applicationID string, after uint64) (gateway.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribes = append(f.subscribes, SubscribeCall{ApplicationID: applicationID, After: after})
	script := Script{Hold: true}
	if len(f.scripts) > 0 {
		script = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	if script.Err != nil {
		return nil, script.Err
	}
	f.open++
	return &stream{fake: f, script: script, closed: make(chan struct{})}, nil
}

// Calls returns all recorded requests.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how many requests were made for method.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Subscribes returns all recorded Subscribe calls.
func (f *Fake) Subscribes() []SubscribeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SubscribeCall(nil), f.subscribes...)
}

// OpenStreams returns the number of streams not yet closed.
func (f *Fake) OpenStreams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

type stream struct {
	fake   *Fake
	script Script
	pos    int
	closed chan struct{}
	once   sync.Once
}

func (s *stream) Next(ctx context.Context) (model.Event, error) {
	select {
	case <-s.closed:
		return model.Event{}, fmt.Errorf("%w: stream closed", model.ErrTransport)
	default:
	}

	if s.pos < len(s.script.Events) {
		ev := s.script.Events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.script.Hold {
		select {
		case <-ctx.Done():
			return model.Event{}, ctx.Err()
		case <-s.closed:
			return model.Event{}, fmt.Errorf("%w: stream closed", model.ErrTransport)
		}
	}
	if s.script.End != nil {
		return model.Event{}, s.script.End
	}
	return model.Event{}, io.EOF
}

func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.fake.mu.Lock()
		s.fake.open--
		s.fake.mu.Unlock()
	})
	return nil
}
