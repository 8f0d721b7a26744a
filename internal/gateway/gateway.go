// Package gateway defines the boundary to the remote ledger node: a
// request/response channel and an application event stream. Implementations
// never retry; callers decide.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AlexZinkM/linera-client/internal/model"
)

const (
	MethodCreateChain       = "chain_create"
	MethodPublishBytecode   = "bytecode_publish"
	MethodCreateApplication = "application_create"
	MethodApplicationStatus = "application_status"
)

// Request is a single call to the node.
type Request struct {
	Method string
	Params any
}

// Response carries the raw result of a request.
type Response struct {
	Result json.RawMessage
}

// Decode unmarshals the result into out.
func (r Response) Decode(out any) error {
	if len(r.Result) == 0 {
		return fmt.Errorf("empty result")
	}
	return json.Unmarshal(r.Result, out)
}

// Gateway is the network-facing side of the client.
//
// Send fails with an error wrapping model.ErrTransport or model.ErrTimeout, or
// with a *model.NodeError for failures reported by the node.
//
// Subscribe opens an event stream for an application that yields events with
// sequence numbers greater than after.
type Gateway interface {
	Send(ctx context.Context, req Request) (Response, error)
	Subscribe(ctx context.Context, applicationID string, after uint64) (Stream, error)
}

// Stream is a lazy, unbounded sequence of events.
//
// Next returns io.EOF when the node closes the stream gracefully and an error
// wrapping model.ErrTransport on an unexpected disconnect. Close unregisters the
// subscription on the node and releases the connection; it is safe to call twice.
type Stream interface {
	Next(ctx context.Context) (model.Event, error)
	Close() error
}

// CreateChainParams are the parameters of chain_create.
type CreateChainParams struct {
	Owner     string `json:"owner"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// CreateChainResult is the result of chain_create.
type CreateChainResult struct {
	ChainID string `json:"chainId"`
	Height  uint64 `json:"height"`
}

// PublishBytecodeParams are the parameters of bytecode_publish. Bytecode is
// base64 encoded on the wire.
type PublishBytecodeParams struct {
	ChainID  string `json:"chainId"`
	Contract []byte `json:"contract"`
	Service  []byte `json:"service"`
}

// PublishBytecodeResult is the result of bytecode_publish.
type PublishBytecodeResult struct {
	BytecodeID string `json:"bytecodeId"`
	Height     uint64 `json:"height"`
}

// CreateApplicationParams are the parameters of application_create.
type CreateApplicationParams struct {
	ChainID    string             `json:"chainId"`
	BytecodeID string             `json:"bytecodeId"`
	Argument   model.InitArgument `json:"argument"`
}

// CreateApplicationResult is the result of application_create.
type CreateApplicationResult struct {
	ApplicationID string `json:"applicationId"`
	Height        uint64 `json:"height"`
}

// ApplicationStatusParams are the parameters of application_status.
type ApplicationStatusParams struct {
	ChainID       string `json:"chainId"`
	ApplicationID string `json:"applicationId"`
}

// ApplicationStatusResult is the result of application_status.
type ApplicationStatusResult struct {
	Visible bool   `json:"visible"`
	Height  uint64 `json:"height"`
}

func call[T any](ctx context.Context, gw Gateway, method string, params any) (T, error) {
	var out T
	resp, err := gw.Send(ctx, Request{Method: method, Params: params})
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return out, nil
}

// CreateChain asks the node to create a chain owned by params.Owner.
func CreateChain(ctx context.Context, gw Gateway, params CreateChainParams) (CreateChainResult, error) {
	return call[CreateChainResult](ctx, gw, MethodCreateChain, params)
}

// PublishBytecode uploads contract and service bytecode to a chain.
func PublishBytecode(ctx context.Context, gw Gateway, params PublishBytecodeParams) (PublishBytecodeResult, error) {
	return call[PublishBytecodeResult](ctx, gw, MethodPublishBytecode, params)
}

// CreateApplication creates an application from published bytecode.
func CreateApplication(ctx context.Context, gw Gateway, params CreateApplicationParams) (CreateApplicationResult, error) {
	return call[CreateApplicationResult](ctx, gw, MethodCreateApplication, params)
}

// ApplicationStatus asks whether an application is visible on a chain.
func ApplicationStatus(ctx context.Context, gw Gateway, params ApplicationStatusParams) (ApplicationStatusResult, error) {
	return call[ApplicationStatusResult](ctx, gw, MethodApplicationStatus, params)
}
