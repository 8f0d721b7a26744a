// Package deploy runs the publish, create, confirm sequence that puts an
// application on a chain.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlexZinkM/linera-client/internal/common"
	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/metrics"
	"github.com/AlexZinkM/linera-client/internal/model"

	"go.uber.org/zap"
)

// Config bounds the remote steps of a deployment.
type Config struct {
	Retry          common.RetryPolicy
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// DefaultConfig returns the default deployment bounds.
func DefaultConfig() Config {
	return Config{
		Retry:          common.DefaultRetryPolicy(),
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   time.Second,
	}
}

// HeightObserver receives block heights reported by the node.
type HeightObserver interface {
	ObserveHeight(chainID string, height uint64)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithObserver registers fn to be called with every state a deployment enters,
// starting with StateIdle.
func WithObserver(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// WithHeightObserver forwards node-reported heights to h.
func WithHeightObserver(h HeightObserver) Option {
	return func(o *Orchestrator) {
		o.heights = h
	}
}

// Orchestrator deploys applications. It is safe for concurrent use; every
// Deploy call runs its own state machine.
type Orchestrator struct {
	gw       gateway.Gateway
	cfg      Config
	log      *zap.Logger
	observer func(State)
	heights  HeightObserver
}

// New creates an Orchestrator.
func New(gw gateway.Gateway, cfg Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}

	o := &Orchestrator{gw: gw, cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.Named("deploy")
	return o
}

// ChainResolver picks the chain a deployment runs on.
type ChainResolver func(ctx context.Context) (model.ChainRef, error)

// Deploy publishes the bytecode found at projectPath on chain, creates the
// application with the optional JSON argument and waits for it to become
// visible.
//
// Local validation (artifacts, argument) happens before any network call.
// Once the application is created the descriptor is always returned. If
// confirmation does not arrive in time, or the node rejects the status query,
// the error wraps model.ErrUncertain: the application may exist and the caller
// has to re-check.
func (o *Orchestrator) Deploy(ctx context.Context, projectPath string, chain model.ChainRef, jsonArgument string) (model.ApplicationDescriptor, error) {
	return o.DeployWith(ctx, projectPath, jsonArgument, func(context.Context) (model.ChainRef, error) {
		return chain, nil
	})
}

// DeployWith is Deploy with the chain resolved only after local validation
// passed, so a resolver that creates chains is never called for a broken
// project.
func (o *Orchestrator) DeployWith(ctx context.Context, projectPath, jsonArgument string, resolve ChainResolver) (model.ApplicationDescriptor, error) {
	r := &run{o: o, log: o.log.With(zap.String("project", projectPath))}
	r.enter(StateIdle)

	argument, err := model.ParseInitArgument(jsonArgument)
	if err != nil {
		return model.ApplicationDescriptor{}, r.fail(model.PhaseValidate, err)
	}
	artifacts, err := LoadArtifacts(ctx, projectPath)
	if err != nil {
		return model.ApplicationDescriptor{}, r.fail(model.PhaseValidate, err)
	}

	chain, err := resolve(ctx)
	if err == nil && chain.ID == "" {
		err = model.ErrNoChainAvailable
	}
	if err != nil {
		return model.ApplicationDescriptor{}, r.fail(model.PhaseChain, err)
	}
	r.log = r.log.With(zap.String("chain", chain.ID))

	// publish
	var published gateway.PublishBytecodeResult
	err = common.Retry(ctx, o.cfg.Retry, model.IsRetryable, func(ctx context.Context) error {
		var err error
		published, err = gateway.PublishBytecode(ctx, o.gw, gateway.PublishBytecodeParams{
			ChainID:  chain.ID,
			Contract: artifacts.Contract,
			Service:  artifacts.Service,
		})
		return err
	}, r.retrying(model.PhasePublish))
	if err == nil && published.BytecodeID == "" {
		err = errors.New("node returned an empty bytecode id")
	}
	if err != nil {
		if ctx.Err() != nil {
			return model.ApplicationDescriptor{}, r.fail(model.PhasePublish, err)
		}
		return model.ApplicationDescriptor{}, r.fail(model.PhasePublish, fmt.Errorf("%w: %w", model.ErrPublish, err))
	}
	o.observeHeight(chain.ID, published.Height)
	r.log = r.log.With(zap.String("bytecode", published.BytecodeID))
	r.enter(StateBytecodePublished)

	// create
	var created gateway.CreateApplicationResult
	err = common.Retry(ctx, o.cfg.Retry, model.IsRetryable, func(ctx context.Context) error {
		var err error
		created, err = gateway.CreateApplication(ctx, o.gw, gateway.CreateApplicationParams{
			ChainID:    chain.ID,
			BytecodeID: published.BytecodeID,
			Argument:   argument,
		})
		return err
	}, r.retrying(model.PhaseCreate))
	if err == nil && created.ApplicationID == "" {
		err = errors.New("node returned an empty application id")
	}
	if err != nil {
		return model.ApplicationDescriptor{}, r.fail(model.PhaseCreate, err)
	}
	o.observeHeight(chain.ID, created.Height)
	r.log = r.log.With(zap.String("application", created.ApplicationID))
	r.enter(StateApplicationCreated)

	desc := model.ApplicationDescriptor{
		ApplicationID: created.ApplicationID,
		BytecodeID:    published.BytecodeID,
		ChainID:       chain.ID,
		ContractPath:  artifacts.ContractPath,
		ServicePath:   artifacts.ServicePath,
		Argument:      argument,
		CreatedAt:     time.Now().UTC(),
	}

	// confirm
	if err := o.confirm(ctx, r, chain.ID, created.ApplicationID); err != nil {
		if errors.Is(err, model.ErrUncertain) {
			r.enter(StateUncertain)
			metrics.RecordDeployResult(StateUncertain.String())
			return desc, &model.OpError{Phase: model.PhaseConfirm, Err: err}
		}
		return desc, r.fail(model.PhaseConfirm, err)
	}
	desc.Confirmed = true
	r.enter(StateConfirmed)
	metrics.RecordDeployResult(StateConfirmed.String())
	return desc, nil
}

// confirm polls until the application is visible. It returns an error
// wrapping model.ErrUncertain when the window elapses, ctx ends first or the
// node rejects the status query; a node error stays reachable with errors.As.
func (o *Orchestrator) confirm(ctx context.Context, r *run, chainID, applicationID string) error {
	window := time.NewTimer(o.cfg.ConfirmTimeout)
	defer window.Stop()
	poll := time.NewTicker(o.cfg.PollInterval)
	defer poll.Stop()

	params := gateway.ApplicationStatusParams{ChainID: chainID, ApplicationID: applicationID}
	for {
		status, err := gateway.ApplicationStatus(ctx, o.gw, params)
		switch {
		case err == nil && status.Visible:
			o.observeHeight(chainID, status.Height)
			return nil
		case err == nil:
			r.log.Debug("application not visible yet")
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %w", model.ErrUncertain, ctx.Err())
		case model.IsRetryable(err):
			r.log.Debug("confirmation poll failed", zap.Error(err))
		default:
			return fmt.Errorf("%w: %w", model.ErrUncertain, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", model.ErrUncertain, ctx.Err())
		case <-window.C:
			return fmt.Errorf("%w: not visible after %s", model.ErrUncertain, o.cfg.ConfirmTimeout)
		case <-poll.C:
		}
	}
}

func (o *Orchestrator) observeHeight(chainID string, height uint64) {
	if o.heights != nil && height > 0 {
		o.heights.ObserveHeight(chainID, height)
	}
}

// run is the state of one Deploy call.
type run struct {
	o     *Orchestrator
	state State
	log   *zap.Logger
}

func (r *run) enter(to State) {
	from := r.state
	r.state = to
	if to == StateIdle {
		r.log.Info("deployment started")
	} else {
		r.log.Info("deployment state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	}
	metrics.RecordDeployTransition(to.String())
	if r.o.observer != nil {
		r.o.observer(to)
	}
}

func (r *run) fail(phase model.Phase, err error) error {
	r.log.Error("deployment failed", zap.String("phase", string(phase)), zap.Error(err))
	r.enter(StateFailed)
	metrics.RecordDeployResult(StateFailed.String())
	return &model.OpError{Phase: phase, Err: err}
}

func (r *run) retrying(phase model.Phase) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		r.log.Warn("remote step failed, retrying", zap.String("phase", string(phase)), zap.Duration("wait", wait), zap.Error(err))
	}
}
