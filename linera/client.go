// Package linera is the client facade: it owns the wallet store, resolves the
// active chain and runs deployments and event subscriptions against a node.
package linera

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/AlexZinkM/linera-client/internal/chain"
	"github.com/AlexZinkM/linera-client/internal/client"
	"github.com/AlexZinkM/linera-client/internal/common"
	"github.com/AlexZinkM/linera-client/internal/config"
	"github.com/AlexZinkM/linera-client/internal/deploy"
	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/metrics"
	"github.com/AlexZinkM/linera-client/internal/model"
	"github.com/AlexZinkM/linera-client/internal/wallet"
	"github.com/AlexZinkM/linera-client/internal/watch"

	"go.uber.org/zap"
)

// ErrNoWallet is returned by operations that need an active wallet when none
// was created or loaded.
var ErrNoWallet = errors.New("no active wallet")

// Options configures a Client. Gateway is required.
type Options struct {
	Gateway      gateway.Gateway
	Logger       *zap.Logger
	Retry        common.RetryPolicy
	Deploy       deploy.Config
	Watch        watch.Config
	KeyGenerator wallet.KeyGenerator
	// DeployObserver, if set, sees every state a deployment enters.
	DeployObserver func(deploy.State)
}

// Client is safe for concurrent use.
type Client struct {
	gw       gateway.Gateway
	store    *wallet.Store
	chains   *chain.Manager
	deployer *deploy.Orchestrator
	watchCfg watch.Config
	log      *zap.Logger

	mu     sync.Mutex
	active string
	subs   map[string]*watch.Subscriber
}

// New creates a Client from opts.
func New(opts Options) (*Client, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = common.DefaultRetryPolicy()
	}
	deployCfg := opts.Deploy
	if deployCfg.Retry.MaxAttempts <= 0 {
		deployCfg.Retry = retry
	}
	watchCfg := opts.Watch
	if watchCfg.InitialBackoff <= 0 && watchCfg.MaxBackoff <= 0 {
		watchCfg = watch.DefaultConfig()
	}

	var storeOpts []wallet.Option
	if opts.KeyGenerator != nil {
		storeOpts = append(storeOpts, wallet.WithKeyGenerator(opts.KeyGenerator))
	}
	store := wallet.NewStore(storeOpts...)
	chains := chain.NewManager(store, opts.Gateway, retry, log)

	deployOpts := []deploy.Option{deploy.WithLogger(log), deploy.WithHeightObserver(chains)}
	if opts.DeployObserver != nil {
		deployOpts = append(deployOpts, deploy.WithObserver(opts.DeployObserver))
	}

	return &Client{
		gw:       opts.Gateway,
		store:    store,
		chains:   chains,
		deployer: deploy.New(opts.Gateway, deployCfg, deployOpts...),
		watchCfg: watchCfg,
		log:      log,
		subs:     make(map[string]*watch.Subscriber),
	}, nil
}

// NewFromConfig creates a Client talking to the node configured in cfg.
func NewFromConfig(cfg *config.Config, log *zap.Logger) (*Client, error) {
	node, err := client.NewNodeClient(client.NodeConfig{
		URL:            cfg.NodeURL,
		WSURL:          cfg.NodeWSURL,
		RequestTimeout: cfg.RequestTimeout,
		MaxRPS:         cfg.MaxRPS,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create node client: %w", err)
	}

	retry := common.RetryPolicy{
		MaxAttempts:     cfg.DeployMaxAttempts,
		InitialInterval: cfg.DeployInitialBackoff,
		MaxInterval:     cfg.DeployMaxBackoff,
	}
	return New(Options{
		Gateway: node,
		Logger:  log,
		Retry:   retry,
		Deploy: deploy.Config{
			Retry:          retry,
			ConfirmTimeout: cfg.ConfirmTimeout,
			PollInterval:   cfg.ConfirmPollInterval,
		},
		Watch: watch.Config{
			InitialBackoff: cfg.WatchInitialBackoff,
			MaxBackoff:     cfg.WatchMaxBackoff,
		},
	})
}

// CreateWallet creates a wallet with a fresh key and makes it active if no
// wallet is active yet.
func (c *Client) CreateWallet() (model.Wallet, error) {
	w, err := c.store.CreateWallet()
	if err != nil {
		return model.Wallet{}, err
	}
	c.mu.Lock()
	if c.active == "" {
		c.active = w.ID
	}
	c.mu.Unlock()
	c.log.Info("wallet created", zap.Object("wallet", w))
	return w, nil
}

// UseWallet registers w, if it is not known yet, and makes it active.
func (c *Client) UseWallet(w model.Wallet) error {
	if _, ok := c.store.Wallet(w.ID); !ok {
		if err := c.store.ImportWallet(w); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.active = w.ID
	c.mu.Unlock()
	return nil
}

// Wallet returns a snapshot of the active wallet.
func (c *Client) Wallet() (model.Wallet, error) {
	id, err := c.activeWallet()
	if err != nil {
		return model.Wallet{}, err
	}
	w, ok := c.store.Wallet(id)
	if !ok {
		return model.Wallet{}, fmt.Errorf("%w: %s", model.ErrUnknownWallet, id)
	}
	return w, nil
}

// Wallets returns snapshots of every registered wallet.
func (c *Client) Wallets() []model.Wallet {
	return c.store.Wallets()
}

// OpenChain creates a new chain for walletID, or for the active wallet when
// walletID is empty.
func (c *Client) OpenChain(ctx context.Context, walletID string) (model.ChainRef, error) {
	if walletID == "" {
		id, err := c.activeWallet()
		if err != nil {
			return model.ChainRef{}, err
		}
		walletID = id
	}
	return c.chains.OpenOrCreateChain(ctx, walletID)
}

// ActiveChain returns the chain deployments of the active wallet run on.
func (c *Client) ActiveChain(ctx context.Context) (model.ChainRef, error) {
	id, err := c.activeWallet()
	if err != nil {
		return model.ChainRef{}, err
	}
	return c.chains.ActiveChain(ctx, id)
}

// Deploy deploys the application built at projectPath on the active chain.
// An outcome that could not be confirmed returns the descriptor together with
// an error wrapping model.ErrUncertain.
func (c *Client) Deploy(ctx context.Context, projectPath, jsonArgument string) (model.ApplicationDescriptor, error) {
	id, err := c.activeWallet()
	if err != nil {
		return model.ApplicationDescriptor{}, err
	}
	return c.deployer.DeployWith(ctx, projectPath, jsonArgument, func(ctx context.Context) (model.ChainRef, error) {
		return c.chains.ActiveChain(ctx, id)
	})
}

// Watch streams the events of applicationID to handler until ctx is cancelled,
// the node closes the stream or handler fails. A later Watch of the same
// application resumes after the last delivered event.
func (c *Client) Watch(ctx context.Context, applicationID string, handler watch.Handler) error {
	if applicationID == "" {
		return fmt.Errorf("%w: application id is empty", model.ErrInvalidArgument)
	}
	return c.subscriber(applicationID).Run(ctx, handler)
}

// Events is Watch as an iterator. A terminal error is yielded once as the last
// element. Breaking out of the loop counts the current event as delivered and
// stops the subscription.
func (c *Client) Events(ctx context.Context, applicationID string) iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		err := c.Watch(ctx, applicationID, func(_ context.Context, ev model.Event) error {
			if !yield(ev, nil) {
				stopped = true
				cancel()
			}
			return nil
		})
		if err != nil && !stopped {
			yield(model.Event{}, err)
		}
	}
}

// Cursor returns the last delivered sequence of applicationID.
func (c *Client) Cursor(applicationID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.subs[applicationID]; ok {
		return s.Cursor()
	}
	return 0
}

// CollectMetrics samples the resource usage of this process.
func (c *Client) CollectMetrics() (model.ResourceSample, error) {
	return metrics.CollectMetrics()
}

func (c *Client) subscriber(applicationID string) *watch.Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.subs[applicationID]
	if !ok {
		s = watch.New(c.gw, applicationID, c.watchCfg, watch.WithLogger(c.log.Named("watch")))
		c.subs[applicationID] = s
	}
	return s
}

func (c *Client) activeWallet() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" {
		return "", ErrNoWallet
	}
	return c.active, nil
}
