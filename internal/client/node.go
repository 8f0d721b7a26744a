package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/metrics"
	"github.com/AlexZinkM/linera-client/internal/model"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRequestTimeout = 30 * time.Second
	handshakeTimeout      = 10 * time.Second
	closeGracePeriod      = time.Second
)

// NodeConfig configures a NodeClient.
type NodeConfig struct {
	URL            string        // JSON-RPC endpoint of the node
	WSURL          string        // event stream endpoint, derived from URL when empty
	RequestTimeout time.Duration // per request
	MaxRPS         float64       // outbound requests per second, 0 means unlimited
	HTTPClient     *http.Client
}

// NodeClient talks JSON-RPC 2.0 over HTTP to the node and streams application
// events over a websocket. It never retries.
type NodeClient struct {
	rpcClient jsonrpc.RPCClient
	wsURL     string
	timeout   time.Duration
	limiter   *rate.Limiter
	dialer    *websocket.Dialer
	log       *zap.Logger
}

var _ gateway.Gateway = (*NodeClient)(nil)

// NewNodeClient creates a client for the node at cfg.URL.
func NewNodeClient(cfg NodeConfig, log *zap.Logger) (*NodeClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("node URL is required")
	}
	nodeURL, err := url.Parse(cfg.URL)
	if err != nil || nodeURL.Host == "" {
		return nil, fmt.Errorf("invalid node URL %q", cfg.URL)
	}

	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL = deriveWSURL(nodeURL)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	limit := rate.Inf
	if cfg.MaxRPS > 0 {
		limit = rate.Limit(cfg.MaxRPS)
	}

	opts := &jsonrpc.RPCClientOpts{}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &NodeClient{
		rpcClient: jsonrpc.NewClientWithOpts(cfg.URL, opts),
		wsURL:     wsURL,
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, 1),
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:       log.Named("node"),
	}, nil
}

func deriveWSURL(u *url.URL) string {
	ws := *u
	switch u.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	ws.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	ws.RawQuery = ""
	return ws.String()
}

// Send performs one JSON-RPC call. Params are sent as a single positional
// argument.
func (c *NodeClient) Send(ctx context.Context, req gateway.Request) (gateway.Response, error) {
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return gateway.Response{}, ctx.Err()
		}
		return gateway.Response{}, fmt.Errorf("%w: %s: %v", model.ErrTimeout, req.Method, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var params []interface{}
	if req.Params != nil {
		params = []interface{}{req.Params}
	}

	var result json.RawMessage
	err := c.rpcClient.CallForInto(reqCtx, &result, req.Method, params)
	if err != nil {
		err = c.classify(ctx, reqCtx, req.Method, err)
		metrics.RecordGatewayRequest(req.Method, outcome(err), time.Since(start).Seconds())
		c.log.Debug("request failed", zap.String("method", req.Method), zap.Error(err))
		return gateway.Response{}, err
	}

	metrics.RecordGatewayRequest(req.Method, "ok", time.Since(start).Seconds())
	return gateway.Response{Result: result}, nil
}

// classify maps a transport error onto the gateway error taxonomy.
func (c *NodeClient) classify(parent, reqCtx context.Context, method string, err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return &model.NodeError{Code: rpcErr.Code, Message: rpcErr.Message}
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", model.ErrTimeout, method, c.timeout)
	}
	return fmt.Errorf("%w: %s: %v", model.ErrTransport, method, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case model.IsNodeError(err):
		return "node_error"
	case errors.Is(err, model.ErrTimeout):
		return "timeout"
	case errors.Is(err, model.ErrTransport):
		return "transport"
	default:
		return "canceled"
	}
}
