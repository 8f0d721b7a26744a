package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AlexZinkM/linera-client/internal/common"
	"github.com/AlexZinkM/linera-client/internal/gateway"
	"github.com/AlexZinkM/linera-client/internal/gateway/gatewaytest"
	"github.com/AlexZinkM/linera-client/internal/model"
	"github.com/AlexZinkM/linera-client/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = common.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func newManager(t *testing.T, fake *gatewaytest.Fake) (*Manager, *wallet.Store, model.Wallet) {
	t.Helper()
	store := wallet.NewStore()
	w, err := store.CreateWallet()
	require.NoError(t, err)
	return NewManager(store, fake, fastRetry, nil), store, w
}

// countingChains answers chain_create with c1, c2, ...
func countingChains(fake *gatewaytest.Fake, delay time.Duration) *atomic.Int32 {
	var n atomic.Int32
	fake.Handle(gateway.MethodCreateChain, func(ctx context.Context, _ json.RawMessage) (any, error) {
		i := n.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return gateway.CreateChainResult{ChainID: fmt.Sprintf("c%d", i), Height: 1}, nil
	})
	return &n
}

func TestActiveChainCreatesOnce(t *testing.T) {
	fake := gatewaytest.New()
	created := countingChains(fake, 20*time.Millisecond)
	m, store, w := newManager(t, fake)

	const callers = 8
	results := make([]model.ChainRef, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, err := m.ActiveChain(context.Background(), w.ID)
			assert.NoError(t, err)
			results[i] = ref
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	for _, ref := range results {
		assert.Equal(t, "c1", ref.ID)
	}
	assert.Equal(t, 1, store.ChainCount(w.ID))
}

func TestActiveChainReturnsLatest(t *testing.T) {
	fake := gatewaytest.New()
	m, store, w := newManager(t, fake)
	require.NoError(t, store.RecordChain(w.ID, model.ChainRef{ID: "old"}))
	require.NoError(t, store.RecordChain(w.ID, model.ChainRef{ID: "new"}))

	ref, err := m.ActiveChain(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", ref.ID)
	assert.Zero(t, fake.CallCount(gateway.MethodCreateChain))
}

func TestOpenOrCreateChainWaiterObservesChain(t *testing.T) {
	fake := gatewaytest.New()
	entered := make(chan struct{})
	release := make(chan struct{})
	var n atomic.Int32
	fake.Handle(gateway.MethodCreateChain, func(ctx context.Context, _ json.RawMessage) (any, error) {
		i := n.Add(1)
		if i == 1 {
			close(entered)
			<-release
		}
		return gateway.CreateChainResult{ChainID: fmt.Sprintf("c%d", i)}, nil
	})
	m, _, w := newManager(t, fake)

	first := make(chan model.ChainRef, 1)
	go func() {
		ref, err := m.OpenOrCreateChain(context.Background(), w.ID)
		assert.NoError(t, err)
		first <- ref
	}()
	<-entered

	second := make(chan model.ChainRef, 1)
	go func() {
		ref, err := m.OpenOrCreateChain(context.Background(), w.ID)
		assert.NoError(t, err)
		second <- ref
	}()
	time.Sleep(50 * time.Millisecond) // let the second caller queue on the token
	close(release)

	assert.Equal(t, "c1", (<-first).ID)
	assert.Equal(t, "c1", (<-second).ID)
	assert.Equal(t, int32(1), n.Load())

	// a later caller gets a fresh chain
	ref, err := m.OpenOrCreateChain(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2", ref.ID)
}

func TestDifferentWalletsDoNotSerialize(t *testing.T) {
	fake := gatewaytest.New()
	block := make(chan struct{})
	fake.Handle(gateway.MethodCreateChain, func(ctx context.Context, params json.RawMessage) (any, error) {
		var p gateway.CreateChainParams
		_ = json.Unmarshal(params, &p)
		if p.Owner == "" {
			return nil, fmt.Errorf("no owner")
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return gateway.CreateChainResult{ChainID: "blocked"}, nil
	})

	store := wallet.NewStore()
	a, err := store.CreateWallet()
	require.NoError(t, err)
	b, err := store.CreateWallet()
	require.NoError(t, err)
	require.NoError(t, store.RecordChain(b.ID, model.ChainRef{ID: "b1"}))
	m := NewManager(store, fake, fastRetry, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = m.OpenOrCreateChain(ctx, a.ID) }()

	// b already has a chain and must not wait for a's creation
	done := make(chan struct{})
	go func() {
		defer close(done)
		ref, err := m.ActiveChain(context.Background(), b.ID)
		assert.NoError(t, err)
		assert.Equal(t, "b1", ref.ID)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated wallet was blocked")
	}
	close(block)
}

func TestCreateRetriesTransportErrors(t *testing.T) {
	fake := gatewaytest.New()
	var n atomic.Int32
	fake.Handle(gateway.MethodCreateChain, func(ctx context.Context, _ json.RawMessage) (any, error) {
		if n.Add(1) < 3 {
			return nil, fmt.Errorf("%w: connection reset", model.ErrTransport)
		}
		return gateway.CreateChainResult{ChainID: "c1", Height: 7}, nil
	})
	m, store, w := newManager(t, fake)

	ref, err := m.ActiveChain(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ChainRef{ID: "c1", Height: 7}, ref)
	assert.Equal(t, int32(3), n.Load())

	latest, _ := store.LatestChain(w.ID)
	assert.Equal(t, "c1", latest.ID)
}

func TestActiveChainNoChainAvailable(t *testing.T) {
	fake := gatewaytest.New()
	fake.Handle(gateway.MethodCreateChain, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, &model.NodeError{Code: 3, Message: "faucet empty"}
	})
	m, store, w := newManager(t, fake)

	_, err := m.ActiveChain(context.Background(), w.ID)
	require.ErrorIs(t, err, model.ErrNoChainAvailable)
	assert.True(t, model.IsNodeError(err))
	assert.Equal(t, 1, fake.CallCount(gateway.MethodCreateChain), "node errors are not retried")
	assert.Equal(t, 0, store.ChainCount(w.ID))

	_, err = m.ActiveChain(context.Background(), "unknown")
	require.ErrorIs(t, err, model.ErrUnknownWallet)
}

func TestCreateRequestIsSigned(t *testing.T) {
	fake := gatewaytest.New()
	countingChains(fake, 0)
	m, _, w := newManager(t, fake)

	_, err := m.OpenOrCreateChain(context.Background(), w.ID)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	var p gateway.CreateChainParams
	require.NoError(t, json.Unmarshal(calls[0].Params, &p))
	assert.Equal(t, w.Owner, p.Owner)
	require.NotEmpty(t, p.Nonce)

	sig, err := solana.SignatureFromBase58(p.Signature)
	require.NoError(t, err)
	msg := []byte(gateway.MethodCreateChain + ":" + p.Owner + ":" + p.Nonce)
	assert.True(t, sig.Verify(w.Key.PublicKey(), msg))
}

func TestAcquireHonoursContext(t *testing.T) {
	tok := newTokens()
	release, err := tok.acquire(context.Background(), "w")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tok.acquire(ctx, "w")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := tok.acquire(context.Background(), "w")
	require.NoError(t, err)
	release2()
}
