package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// rpcServer answers JSON-RPC calls with fn.
func rpcServer(t *testing.T, fn func(req rpcRequest) (result any, rpcErr map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, rpcErr := fn(req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, rpcURL, wsURL string, timeout time.Duration) *NodeClient {
	t.Helper()
	c, err := NewNodeClient(NodeConfig{URL: rpcURL, WSURL: wsURL, RequestTimeout: timeout}, nil)
	require.NoError(t, err)
	return c
}

func TestSendDecodesResult(t *testing.T) {
	var got rpcRequest
	srv := rpcServer(t, func(req rpcRequest) (any, map[string]any) {
		got = req
		return map[string]any{"chainId": "c1", "height": 3}, nil
	})
	c := newTestClient(t, srv.URL, "", time.Second)

	res, err := gateway.CreateChain(context.Background(), c, gateway.CreateChainParams{Owner: "o", Nonce: "n", Signature: "s"})
	require.NoError(t, err)
	assert.Equal(t, gateway.CreateChainResult{ChainID: "c1", Height: 3}, res)

	assert.Equal(t, gateway.MethodCreateChain, got.Method)
	require.Len(t, got.Params, 1)
	assert.JSONEq(t, `{"owner":"o","nonce":"n","signature":"s"}`, string(got.Params[0]))
}

func TestSendNodeError(t *testing.T) {
	srv := rpcServer(t, func(req rpcRequest) (any, map[string]any) {
		return nil, map[string]any{"code": -32000, "message": "chain is closed"}
	})
	c := newTestClient(t, srv.URL, "", time.Second)

	_, err := c.Send(context.Background(), gateway.Request{Method: gateway.MethodPublishBytecode, Params: map[string]string{}})
	var nodeErr *model.NodeError
	require.True(t, errors.As(err, &nodeErr), "got %v", err)
	assert.Equal(t, -32000, nodeErr.Code)
	assert.Equal(t, "chain is closed", nodeErr.Message)
	assert.False(t, model.IsRetryable(err))
}

func TestSendTimeout(t *testing.T) {
	srv := rpcServer(t, func(req rpcRequest) (any, map[string]any) {
		time.Sleep(200 * time.Millisecond)
		return true, nil
	})
	c := newTestClient(t, srv.URL, "", 20*time.Millisecond)

	_, err := c.Send(context.Background(), gateway.Request{Method: gateway.MethodApplicationStatus})
	require.ErrorIs(t, err, model.ErrTimeout)
	assert.True(t, model.IsRetryable(err))
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := newTestClient(t, addr, "", time.Second)
	_, err := c.Send(context.Background(), gateway.Request{Method: gateway.MethodApplicationStatus})
	require.ErrorIs(t, err, model.ErrTransport)
}

func TestSendCancelledIsNotRetryable(t *testing.T) {
	srv := rpcServer(t, func(req rpcRequest) (any, map[string]any) {
		time.Sleep(200 * time.Millisecond)
		return true, nil
	})
	c := newTestClient(t, srv.URL, "", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, gateway.Request{Method: gateway.MethodApplicationStatus})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, model.IsRetryable(err))
}

func TestNewNodeClientValidatesURL(t *testing.T) {
	_, err := NewNodeClient(NodeConfig{}, nil)
	require.Error(t, err)
	_, err = NewNodeClient(NodeConfig{URL: "not a url"}, nil)
	require.Error(t, err)
}

func TestDeriveWSURL(t *testing.T) {
	for in, want := range map[string]string{
		"http://node:8080":          "ws://node:8080/ws",
		"https://node.example/rpc/": "wss://node.example/rpc/ws",
		"http://node?x=1":           "ws://node/ws",
	} {
		u, err := url.Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, deriveWSURL(u), in)
	}
}

// wsNode is a websocket endpoint scripted per connection.
type wsNode struct {
	mu       sync.Mutex
	received []frame
	srv      *httptest.Server
}

func newWSNode(t *testing.T, script func(conn *websocket.Conn, sub frame)) *wsNode {
	t.Helper()
	n := &wsNode{}
	upgrader := websocket.Upgrader{}
	n.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub frame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		n.record(sub)
		script(conn, sub)
	}))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *wsNode) record(f frame) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.received = append(n.received, f)
}

func (n *wsNode) frames() []frame {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]frame(nil), n.received...)
}

func (n *wsNode) url() string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http") + "/ws"
}

func sendEvents(t *testing.T, conn *websocket.Conn, from, to uint64) {
	for s := from; s <= to; s++ {
		if err := conn.WriteJSON(frame{Type: frameEvent, Sequence: s, ChainID: "c1", Payload: json.RawMessage(`{"n":1}`)}); err != nil {
			t.Errorf("write event: %v", err)
			return
		}
	}
}

func TestSubscribeStreamsUntilGracefulClose(t *testing.T) {
	node := newWSNode(t, func(conn *websocket.Conn, sub frame) {
		_ = conn.WriteJSON(frame{Type: frameSubscribed})
		sendEvents(t, conn, sub.After+1, sub.After+3)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		_, _, _ = conn.ReadMessage()
	})
	c := newTestClient(t, "http://127.0.0.1:1", node.url(), time.Second)

	stream, err := c.Subscribe(context.Background(), "app-1", 4)
	require.NoError(t, err)
	defer stream.Close()

	for want := uint64(5); want <= 7; want++ {
		ev, err := stream.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, ev.Sequence)
		assert.Equal(t, "app-1", ev.ApplicationID)
		assert.JSONEq(t, `{"n":1}`, string(ev.Payload))
		assert.False(t, ev.ReceivedAt.IsZero())
	}
	_, err = stream.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)

	sub := node.frames()[0]
	assert.Equal(t, frameSubscribe, sub.Type)
	assert.Equal(t, "app-1", sub.ApplicationID)
	assert.Equal(t, uint64(4), sub.After)
}

func TestSubscribeRejected(t *testing.T) {
	node := newWSNode(t, func(conn *websocket.Conn, sub frame) {
		_ = conn.WriteJSON(frame{Type: frameError, Code: 404, Message: "unknown application"})
	})
	c := newTestClient(t, "http://127.0.0.1:1", node.url(), time.Second)

	_, err := c.Subscribe(context.Background(), "missing", 0)
	var nodeErr *model.NodeError
	require.True(t, errors.As(err, &nodeErr), "got %v", err)
	assert.Equal(t, 404, nodeErr.Code)
}

func TestSubscribeUnexpectedDisconnect(t *testing.T) {
	node := newWSNode(t, func(conn *websocket.Conn, sub frame) {
		_ = conn.WriteJSON(frame{Type: frameSubscribed})
		sendEvents(t, conn, 1, 1)
		conn.UnderlyingConn().Close()
	})
	c := newTestClient(t, "http://127.0.0.1:1", node.url(), time.Second)

	stream, err := c.Subscribe(context.Background(), "app", 0)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next(context.Background())
	require.NoError(t, err)
	_, err = stream.Next(context.Background())
	require.ErrorIs(t, err, model.ErrTransport)
}

func TestSubscribeDialFailure(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", "ws://127.0.0.1:1/ws", time.Second)
	_, err := c.Subscribe(context.Background(), "app", 0)
	require.ErrorIs(t, err, model.ErrTransport)
}

func TestStreamCloseUnsubscribes(t *testing.T) {
	done := make(chan struct{})
	var node *wsNode
	node = newWSNode(t, func(conn *websocket.Conn, sub frame) {
		defer close(done)
		_ = conn.WriteJSON(frame{Type: frameSubscribed})
		var f frame
		if err := conn.ReadJSON(&f); err == nil {
			node.record(f)
		}
		_, _, _ = conn.ReadMessage()
	})
	c := newTestClient(t, "http://127.0.0.1:1", node.url(), time.Second)

	stream, err := c.Subscribe(context.Background(), "app", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("node did not see the connection close")
	}
	frames := node.frames()
	require.Len(t, frames, 2)
	assert.Equal(t, frameUnsubscribe, frames[1].Type)
	assert.Equal(t, "app", frames[1].ApplicationID)
}
