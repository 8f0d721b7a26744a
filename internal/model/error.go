package model

import (
	"errors"
	"fmt"
)

// ErrorResponse is the consistent JSON structure for all API error responses.
// For node-reported failures Code is "node_error" and NodeCode and NodeMessage
// carry the node's error as received.
type ErrorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	Phase       string `json:"phase,omitempty"`
	NodeCode    *int   `json:"nodeCode,omitempty"`
	NodeMessage string `json:"nodeMessage,omitempty"`
}

var (
	// ErrTransport is a connection-level failure talking to the node. Retryable.
	ErrTransport = errors.New("transport error")
	// ErrTimeout means the node did not answer in time. Retryable.
	ErrTimeout = errors.New("timeout")

	ErrMissingArtifact  = errors.New("missing artifact")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrKeyGeneration    = errors.New("key generation failed")
	ErrNoChainAvailable = errors.New("no chain available")
	ErrUnknownWallet    = errors.New("unknown wallet")
	ErrChainOwned       = errors.New("chain is owned by another wallet")
	ErrDuplicateWallet  = errors.New("wallet already exists")

	// ErrPublish is a non-retryable failure publishing bytecode.
	ErrPublish = errors.New("publish failed")
	// ErrUncertain means confirmation did not arrive in time: the application
	// may or may not exist on-chain and must be re-checked.
	ErrUncertain = errors.New("deployment outcome uncertain")

	ErrAlreadyRunning = errors.New("subscription already running")
)

// NodeError is an application-level failure reported by the remote node.
type NodeError struct {
	Code    int
	Message string
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node error %d: %s", e.Code, e.Message)
}

// Phase names the step of an operation an error happened in.
type Phase string

const (
	PhaseValidate  Phase = "validate"
	PhaseChain     Phase = "chain"
	PhasePublish   Phase = "publish"
	PhaseCreate    Phase = "create"
	PhaseConfirm   Phase = "confirm"
	PhaseSubscribe Phase = "subscribe"
)

// OpError tags an error with the phase it occurred in.
type OpError struct {
	Phase Phase
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// PhaseOf returns the phase recorded on err, or "" if there is none.
func PhaseOf(err error) Phase {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Phase
	}
	return ""
}

// IsRetryable reports whether err is a transport failure or a timeout.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout)
}

// IsNodeError checks if err carries a NodeError
func IsNodeError(err error) bool {
	var nodeErr *NodeError
	return errors.As(err, &nodeErr)
}
