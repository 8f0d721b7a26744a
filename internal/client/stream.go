package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	frameSubscribe   = "subscribe"
	frameSubscribed  = "subscribed"
	frameUnsubscribe = "unsubscribe"
	frameEvent       = "event"
	frameError       = "error"
)

// frame is a websocket message in either direction.
type frame struct {
	Type          string          `json:"type"`
	ApplicationID string          `json:"applicationId,omitempty"`
	After         uint64          `json:"after,omitempty"`
	Sequence      uint64          `json:"sequence,omitempty"`
	ChainID       string          `json:"chainId,omitempty"`
	Height        uint64          `json:"height,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Code          int             `json:"code,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// Subscribe dials the event endpoint and registers for events of
// applicationID after the given sequence. It waits for the node to accept the
// subscription.
func (c *NodeClient) Subscribe(ctx context.Context, applicationID string, after uint64) (gateway.Stream, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: subscribe: %v", model.ErrTimeout, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, c.wsURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: websocket dial", model.ErrTimeout)
		}
		return nil, fmt.Errorf("%w: websocket dial: %v", model.ErrTransport, err)
	}

	req := frame{Type: frameSubscribe, ApplicationID: applicationID, After: after}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: send subscribe: %v", model.ErrTransport, err)
	}

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var ack frame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: waiting for subscribe ack", model.ErrTimeout)
		}
		return nil, fmt.Errorf("%w: read subscribe ack: %v", model.ErrTransport, err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch ack.Type {
	case frameSubscribed:
	case frameError:
		conn.Close()
		return nil, &model.NodeError{Code: ack.Code, Message: ack.Message}
	default:
		conn.Close()
		return nil, fmt.Errorf("%w: unexpected %q frame before subscribe ack", model.ErrTransport, ack.Type)
	}

	s := &wsStream{
		conn:   conn,
		appID:  applicationID,
		frames: make(chan frameResult, 16),
		done:   make(chan struct{}),
		log:    c.log.With(zap.String("applicationId", applicationID)),
	}
	go s.pump()
	return s, nil
}

type frameResult struct {
	ev  model.Event
	err error
}

// wsStream reads frames on its own goroutine so Next can honour ctx.
type wsStream struct {
	conn  *websocket.Conn
	appID string
	log   *zap.Logger

	frames chan frameResult
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (s *wsStream) pump() {
	defer close(s.frames)
	for {
		var f frame
		err := s.conn.ReadJSON(&f)
		if err != nil {
			s.deliver(frameResult{err: s.readError(err)})
			return
		}

		switch f.Type {
		case frameEvent:
			ev := model.Event{
				ApplicationID: f.ApplicationID,
				Sequence:      f.Sequence,
				ChainID:       f.ChainID,
				Height:        f.Height,
				Payload:       f.Payload,
				ReceivedAt:    time.Now().UTC(),
			}
			if ev.ApplicationID == "" {
				ev.ApplicationID = s.appID
			}
			if !s.deliver(frameResult{ev: ev}) {
				return
			}
		case frameError:
			s.deliver(frameResult{err: &model.NodeError{Code: f.Code, Message: f.Message}})
			return
		default:
			s.log.Debug("ignoring frame", zap.String("type", f.Type))
		}
	}
}

func (s *wsStream) deliver(r frameResult) bool {
	select {
	case s.frames <- r:
		return true
	case <-s.done:
		return false
	}
}

func (s *wsStream) readError(err error) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: stream closed", model.ErrTransport)
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return fmt.Errorf("%w: %v", model.ErrTransport, err)
}

// Next returns the next event. It returns io.EOF once the node closed the
// stream normally.
func (s *wsStream) Next(ctx context.Context) (model.Event, error) {
	select {
	case <-ctx.Done():
		return model.Event{}, ctx.Err()
	case r, ok := <-s.frames:
		if !ok {
			return model.Event{}, fmt.Errorf("%w: stream closed", model.ErrTransport)
		}
		return r.ev, r.err
	}
}

// Close unsubscribes, sends a close frame and releases the connection.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		deadline := time.Now().Add(closeGracePeriod)
		_ = s.conn.SetWriteDeadline(deadline)
		if err := s.conn.WriteJSON(frame{Type: frameUnsubscribe, ApplicationID: s.appID}); err != nil {
			s.log.Debug("unsubscribe failed", zap.Error(err))
		}
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		s.writeMu.Unlock()

		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
