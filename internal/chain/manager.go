// Package chain resolves and creates the chains a wallet operates on.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/AlexZinkM/linera-client/internal/common"
	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/model"
	"github.com/AlexZinkM/linera-client/internal/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager creates chains through the gateway and records them in the store.
// Chain creation is serialized per wallet; different wallets never wait on
// each other.
type Manager struct {
	store  *wallet.Store
	gw     gateway.Gateway
	retry  common.RetryPolicy
	log    *zap.Logger
	tokens *tokens
}

// NewManager creates a Manager. A nil logger disables logging.
func NewManager(store *wallet.Store, gw gateway.Gateway, retry common.RetryPolicy, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:  store,
		gw:     gw,
		retry:  retry,
		log:    log.Named("chain"),
		tokens: newTokens(),
	}
}

// ActiveChain returns the wallet's most recently recorded chain, creating one
// if the wallet has none.
func (m *Manager) ActiveChain(ctx context.Context, walletID string) (model.ChainRef, error) {
	if ref, ok := m.store.LatestChain(walletID); ok {
		return ref, nil
	}
	if _, ok := m.store.Wallet(walletID); !ok {
		return model.ChainRef{}, fmt.Errorf("%w: %s", model.ErrUnknownWallet, walletID)
	}

	release, err := m.tokens.acquire(ctx, walletID)
	if err != nil {
		return model.ChainRef{}, err
	}
	defer release()

	// another caller may have created it while we waited
	if ref, ok := m.store.LatestChain(walletID); ok {
		return ref, nil
	}
	ref, err := m.create(ctx, walletID)
	if err != nil {
		return model.ChainRef{}, fmt.Errorf("%w: %w", model.ErrNoChainAvailable, err)
	}
	return ref, nil
}

// OpenOrCreateChain requests a new chain for the wallet and records it. A
// caller that had to wait for a concurrent creation on the same wallet gets
// that chain instead of creating another one.
func (m *Manager) OpenOrCreateChain(ctx context.Context, walletID string) (model.ChainRef, error) {
	if _, ok := m.store.Wallet(walletID); !ok {
		return model.ChainRef{}, fmt.Errorf("%w: %s", model.ErrUnknownWallet, walletID)
	}
	seen := m.store.ChainCount(walletID)

	release, err := m.tokens.acquire(ctx, walletID)
	if err != nil {
		return model.ChainRef{}, err
	}
	defer release()

	if m.store.ChainCount(walletID) > seen {
		ref, _ := m.store.LatestChain(walletID)
		return ref, nil
	}
	return m.create(ctx, walletID)
}

// ObserveHeight forwards a node-reported height to the store.
func (m *Manager) ObserveHeight(chainID string, height uint64) {
	m.store.ObserveHeight(chainID, height)
}

// create must be called holding the wallet's token.
func (m *Manager) create(ctx context.Context, walletID string) (model.ChainRef, error) {
	w, ok := m.store.Wallet(walletID)
	if !ok {
		return model.ChainRef{}, fmt.Errorf("%w: %s", model.ErrUnknownWallet, walletID)
	}

	nonce := uuid.NewString()
	sig, err := m.store.Sign(walletID, []byte(gateway.MethodCreateChain+":"+w.Owner+":"+nonce))
	if err != nil {
		return model.ChainRef{}, &model.OpError{Phase: model.PhaseChain, Err: fmt.Errorf("failed to sign request: %w", err)}
	}
	params := gateway.CreateChainParams{Owner: w.Owner, Nonce: nonce, Signature: sig.String()}

	var res gateway.CreateChainResult
	err = common.Retry(ctx, m.retry, model.IsRetryable, func(ctx context.Context) error {
		var err error
		res, err = gateway.CreateChain(ctx, m.gw, params)
		return err
	}, func(err error, wait time.Duration) {
		m.log.Warn("chain creation failed, retrying", zap.String("wallet", walletID), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return model.ChainRef{}, &model.OpError{Phase: model.PhaseChain, Err: err}
	}
	if res.ChainID == "" {
		return model.ChainRef{}, &model.OpError{Phase: model.PhaseChain, Err: fmt.Errorf("node returned an empty chain id")}
	}

	ref := model.ChainRef{ID: res.ChainID, Height: res.Height}
	if err := m.store.RecordChain(walletID, ref); err != nil {
		return model.ChainRef{}, &model.OpError{Phase: model.PhaseChain, Err: err}
	}
	m.log.Info("chain created", zap.Object("wallet", w), zap.String("chain", ref.ID), zap.Uint64("height", ref.Height))
	return ref, nil
}
