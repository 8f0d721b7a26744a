// Package wallet keeps wallet identities and the chains they own in memory.
package wallet

import (
	"fmt"
	"sync"

	"github.com/AlexZinkM/linera-client/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// KeyGenerator produces fresh private keys.
type KeyGenerator func() (solana.PrivateKey, error)

type entry struct {
	wallet model.Wallet
	index  map[string]int // chain id -> position in wallet.Chains
}

// Store is the sole owner of wallets and their chain references.
type Store struct {
	mu      sync.RWMutex
	wallets map[string]*entry
	owners  map[string]string // chain id -> wallet id
	keygen  KeyGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithKeyGenerator replaces the default ed25519 key generator.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(s *Store) {
		s.keygen = gen
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		wallets: make(map[string]*entry),
		owners:  make(map[string]string),
		keygen:  solana.NewRandomPrivateKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWallet generates fresh key material and registers a new wallet under a
// unique identifier. Nothing is persisted.
func (s *Store) CreateWallet() (model.Wallet, error) {
	key, err := s.keygen()
	if err != nil {
		return model.Wallet{}, fmt.Errorf("%w: %w", model.ErrKeyGeneration, err)
	}
	if len(key) != 64 {
		return model.Wallet{}, fmt.Errorf("%w: unexpected key length %d", model.ErrKeyGeneration, len(key))
	}

	w := model.Wallet{
		Owner: key.PublicKey().String(),
		Key:   model.NewKeyMaterial(key),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ids are unique per store
	for {
		w.ID = uuid.NewString()
		if _, ok := s.wallets[w.ID]; !ok {
			break
		}
	}
	s.wallets[w.ID] = &entry{wallet: w, index: make(map[string]int)}
	return w.Clone(), nil
}

// ImportWallet registers an existing wallet, e.g. one loaded from disk.
func (s *Store) ImportWallet(w model.Wallet) error {
	if w.ID == "" {
		return fmt.Errorf("wallet id is empty")
	}
	if w.Key.IsZero() {
		return fmt.Errorf("wallet %s has no key material", w.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wallets[w.ID]; ok {
		return fmt.Errorf("%w: %s", model.ErrDuplicateWallet, w.ID)
	}
	for _, ref := range w.Chains {
		if owner, ok := s.owners[ref.ID]; ok {
			return fmt.Errorf("%w: chain %s belongs to %s", model.ErrChainOwned, ref.ID, owner)
		}
	}

	e := &entry{wallet: w.Clone(), index: make(map[string]int)}
	e.wallet.Chains = e.wallet.Chains[:0]
	for _, ref := range w.Chains {
		if _, ok := e.index[ref.ID]; ok {
			continue
		}
		e.index[ref.ID] = len(e.wallet.Chains)
		e.wallet.Chains = append(e.wallet.Chains, ref)
		s.owners[ref.ID] = w.ID
	}
	s.wallets[w.ID] = e
	return nil
}

// RecordChain appends ref to the wallet's chains. Recording a chain the wallet
// already knows is a no-op apart from raising its height.
func (s *Store) RecordChain(walletID string, ref model.ChainRef) error {
	if ref.ID == "" {
		return fmt.Errorf("chain id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.wallets[walletID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownWallet, walletID)
	}
	if owner, ok := s.owners[ref.ID]; ok && owner != walletID {
		return fmt.Errorf("%w: chain %s belongs to %s", model.ErrChainOwned, ref.ID, owner)
	}

	if i, ok := e.index[ref.ID]; ok {
		if ref.Height > e.wallet.Chains[i].Height {
			e.wallet.Chains[i].Height = ref.Height
		}
		return nil
	}

	e.index[ref.ID] = len(e.wallet.Chains)
	e.wallet.Chains = append(e.wallet.Chains, ref)
	s.owners[ref.ID] = walletID
	return nil
}

// ObserveHeight raises the last-known height of a chain. Lower heights are ignored.
func (s *Store) ObserveHeight(chainID string, height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	walletID, ok := s.owners[chainID]
	if !ok {
		return
	}
	e := s.wallets[walletID]
	i := e.index[chainID]
	if height > e.wallet.Chains[i].Height {
		e.wallet.Chains[i].Height = height
	}
}

// Wallet returns a snapshot of the wallet with the given id.
func (s *Store) Wallet(id string) (model.Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.wallets[id]
	if !ok {
		return model.Wallet{}, false
	}
	return e.wallet.Clone(), true
}

// Wallets returns snapshots of all wallets, in no particular order.
func (s *Store) Wallets() []model.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Wallet, 0, len(s.wallets))
	for _, e := range s.wallets {
		out = append(out, e.wallet.Clone())
	}
	return out
}

// LatestChain returns the most recently recorded chain of a wallet.
func (s *Store) LatestChain(walletID string) (model.ChainRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.wallets[walletID]
	if !ok || len(e.wallet.Chains) == 0 {
		return model.ChainRef{}, false
	}
	return e.wallet.Chains[len(e.wallet.Chains)-1], true
}

// ChainCount returns how many chains the wallet has recorded.
func (s *Store) ChainCount(walletID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.wallets[walletID]; ok {
		return len(e.wallet.Chains)
	}
	return 0
}

// Sign signs payload with the wallet's key.
func (s *Store) Sign(walletID string, payload []byte) (solana.Signature, error) {
	s.mu.RLock()
	e, ok := s.wallets[walletID]
	s.mu.RUnlock()
	if !ok {
		return solana.Signature{}, fmt.Errorf("%w: %s", model.ErrUnknownWallet, walletID)
	}
	return e.wallet.Key.Sign(payload)
}
