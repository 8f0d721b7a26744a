package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMaterialNeverPrintsKey(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w := Wallet{ID: "w1", Owner: key.PublicKey().String(), Key: NewKeyMaterial(key)}
	encoded := key.String()

	for _, format := range []string{"%v", "%+v", "%#v", "%s", "%d", "%x"} {
		out := fmt.Sprintf(format, w)
		assert.NotContains(t, out, encoded, format)
	}

	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.NotContains(t, string(data), encoded)

	data, err = json.Marshal(w.Key)
	require.NoError(t, err)
	assert.Equal(t, `"[redacted]"`, string(data))
}

func TestKeyMaterialBytesIsCopy(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	km := NewKeyMaterial(key)

	b := km.Bytes()
	require.Len(t, b, 64)
	clear(b)

	assert.Equal(t, key.PublicKey(), km.PublicKey())
	sig, err := km.Sign([]byte("payload"))
	require.NoError(t, err)
	assert.True(t, sig.Verify(km.PublicKey(), []byte("payload")))
}

func TestWalletCloneSharesNoChains(t *testing.T) {
	w := Wallet{ID: "w1", Chains: []ChainRef{{ID: "c1", Height: 1}}}
	c := w.Clone()
	c.Chains[0].Height = 9
	c.Chains = append(c.Chains, ChainRef{ID: "c2"})

	assert.Equal(t, uint64(1), w.Chains[0].Height)
	assert.Len(t, w.Chains, 1)
}

func TestParseInitArgument(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty", in: ""},
		{name: "blank", in: "  \n"},
		{name: "number", in: "42", want: "42"},
		{name: "object", in: `{"owner":"abc","amount":"10"}`, want: `{"owner":"abc","amount":"10"}`},
		{name: "trimmed", in: ` [1, 2] `, want: `[1, 2]`},
		{name: "unterminated", in: `{"a":`, wantErr: true},
		{name: "bare word", in: `hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arg, err := ParseInitArgument(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(arg))
			assert.Equal(t, tt.want == "", arg.IsZero())
		})
	}
}

func TestDescriptorArgumentJSON(t *testing.T) {
	arg, err := ParseInitArgument(`{"n":1}`)
	require.NoError(t, err)

	data, err := json.Marshal(ApplicationDescriptor{ApplicationID: "app", Argument: arg})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"argument":{"n":1}`)

	var back ApplicationDescriptor
	require.NoError(t, json.Unmarshal(data, &back))
	assert.JSONEq(t, `{"n":1}`, string(back.Argument))
}

func TestErrorTaxonomy(t *testing.T) {
	transport := fmt.Errorf("%w: connection refused", ErrTransport)
	timeout := fmt.Errorf("%w: after 1s", ErrTimeout)
	node := &NodeError{Code: 7, Message: "rejected"}

	assert.True(t, IsRetryable(transport))
	assert.True(t, IsRetryable(timeout))
	assert.False(t, IsRetryable(node))
	assert.False(t, IsRetryable(ErrPublish))

	wrapped := &OpError{Phase: PhasePublish, Err: fmt.Errorf("%w: %w", ErrPublish, node)}
	assert.Equal(t, PhasePublish, PhaseOf(wrapped))
	assert.True(t, IsNodeError(wrapped))
	assert.ErrorIs(t, wrapped, ErrPublish)

	var nodeErr *NodeError
	require.True(t, errors.As(wrapped, &nodeErr))
	assert.Equal(t, 7, nodeErr.Code)
	assert.Equal(t, Phase(""), PhaseOf(transport))
}
