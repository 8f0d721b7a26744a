package model

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap/zapcore"
)

const redacted = "[redacted]"

// KeyMaterial is the private key of a wallet. It never prints or serializes itself.
type KeyMaterial struct {
	key solana.PrivateKey
}

// NewKeyMaterial wraps a private key. The slice is owned by the returned value.
func NewKeyMaterial(key solana.PrivateKey) KeyMaterial {
	return KeyMaterial{key: key}
}

// Bytes returns a copy of the raw 64-byte key (caller should zero it after use)
func (k KeyMaterial) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// PublicKey returns the public half of the key.
func (k KeyMaterial) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

// Sign signs payload with the key.
func (k KeyMaterial) Sign(payload []byte) (solana.Signature, error) {
	return k.key.Sign(payload)
}

// IsZero reports whether no key is held.
func (k KeyMaterial) IsZero() bool {
	return len(k.key) == 0
}

func (k KeyMaterial) String() string   { return redacted }
func (k KeyMaterial) GoString() string { return redacted }

// Format redacts the key for every verb, including %d and %x.
func (k KeyMaterial) Format(f fmt.State, _ rune) {
	f.Write([]byte(redacted))
}

// MarshalJSON never emits the key.
func (k KeyMaterial) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Wallet is a local identity: a key pair plus the chains it owns.
type Wallet struct {
	ID     string      `json:"id"`
	Owner  string      `json:"owner"` // base58 public key
	Key    KeyMaterial `json:"-"`
	Chains []ChainRef  `json:"chains"`
}

// Clone returns a copy that shares no slices with w.
func (w Wallet) Clone() Wallet {
	out := w
	out.Chains = append([]ChainRef(nil), w.Chains...)
	return out
}

// MarshalLogObject implements zapcore.ObjectMarshaler without the key.
func (w Wallet) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", w.ID)
	enc.AddString("owner", w.Owner)
	enc.AddInt("chains", len(w.Chains))
	return nil
}

// ChainRef is a chain known to a wallet with its last observed block height.
type ChainRef struct {
	ID     string `json:"chainId"`
	Height uint64 `json:"height"`
}

// WalletFile represents wallet.json inside a wallet directory
type WalletFile struct {
	ID           string     `json:"id"`
	Owner        string     `json:"owner"`
	QR           string     `json:"QR"`
	Chains       []ChainRef `json:"chains"`
	DefaultChain string     `json:"defaultChain,omitempty"`
	CreatedAt    string     `json:"createdAt"`
}

// KeystoreFile represents keystore.json inside a wallet directory
type KeystoreFile struct {
	Owner      string `json:"owner"`
	ScryptN    int    `json:"scryptN"`
	ScryptR    int    `json:"scryptR"`
	ScryptP    int    `json:"scryptP"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipherText"`
}

// KeyData represents decrypted keystore contents
type KeyData struct {
	PrivateKey []byte `json:"privateKey"` // 64 bytes (stored as base64 in JSON)
	CreatedAt  string `json:"createdAt"`
}
