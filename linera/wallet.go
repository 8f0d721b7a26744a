package linera

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlexZinkM/linera-client/internal/crypto"
	"github.com/AlexZinkM/linera-client/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
)

const (
	WalletFileName   = "wallet.json"
	KeystoreFileName = "keystore.json"
)

// ErrInvalidWalletDir is returned for a wallet directory that is missing or
// lacks one of its files.
var ErrInvalidWalletDir = errors.New("invalid wallet directory")

type fileOptions struct {
	params crypto.Params
}

// FileOption configures wallet persistence.
type FileOption func(*fileOptions)

// WithScryptParams overrides the scrypt cost of newly written keystores.
func WithScryptParams(n, r, p int) FileOption {
	return func(o *fileOptions) {
		o.params = crypto.Params{N: n, R: r, P: p}
	}
}

func newFileOptions(opts []FileOption) fileOptions {
	o := fileOptions{params: crypto.DefaultParams()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ValidateWalletDir checks that dir exists and holds wallet.json and
// keystore.json.
func ValidateWalletDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidWalletDir, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidWalletDir, dir)
	}
	for _, name := range []string{WalletFileName, KeystoreFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("%w: %s is missing in %s", ErrInvalidWalletDir, name, dir)
		}
		if info.IsDir() || info.Size() == 0 {
			return fmt.Errorf("%w: %s in %s is empty", ErrInvalidWalletDir, name, dir)
		}
	}
	return nil
}

// SaveWallet writes w to dir, creating the directory if needed. wallet.json is
// rewritten on every call; keystore.json is only written when it does not
// exist yet and otherwise has to belong to the same owner.
// password must be []byte for security (caller should zero it after use)
func SaveWallet(dir string, w model.Wallet, password []byte, opts ...FileOption) error {
	o := newFileOptions(opts)

	if w.Key.IsZero() {
		return fmt.Errorf("wallet %s has no key material", w.ID)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create wallet directory: %w", err)
	}

	keystorePath := filepath.Join(dir, KeystoreFileName)
	switch owner, err := crypto.ReadOwner(keystorePath); {
	case err == nil && owner != w.Owner:
		return fmt.Errorf("keystore in %s belongs to %s, not %s", dir, owner, w.Owner)
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		key := w.Key.Bytes()
		defer clear(key)
		keyData := &model.KeyData{PrivateKey: key, CreatedAt: time.Now().Format(time.RFC3339)}
		if err := crypto.EncryptKey(keystorePath, w.Owner, keyData, password, o.params); err != nil {
			return fmt.Errorf("failed to encrypt wallet key: %w", err)
		}
	default:
		return err
	}

	createdAt := time.Now().Format(time.RFC3339)
	if prev, err := readWalletFile(filepath.Join(dir, WalletFileName)); err == nil && prev.ID == w.ID {
		createdAt = prev.CreatedAt
	}

	qr, err := generateQRCode(w.Owner)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	wf := model.WalletFile{
		ID:        w.ID,
		Owner:     w.Owner,
		QR:        qr,
		Chains:    w.Chains,
		CreatedAt: createdAt,
	}
	if wf.Chains == nil {
		wf.Chains = []model.ChainRef{}
	}
	if n := len(w.Chains); n > 0 {
		wf.DefaultChain = w.Chains[n-1].ID
	}

	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal wallet file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, WalletFileName), data, 0600); err != nil {
		return fmt.Errorf("failed to write wallet file: %w", err)
	}
	return nil
}

// LoadWallet reads and decrypts the wallet stored in dir. The default chain
// is ordered last so it becomes the wallet's active chain.
// password must be []byte for security (caller should zero it after use)
func LoadWallet(dir string, password []byte) (model.Wallet, error) {
	if err := ValidateWalletDir(dir); err != nil {
		return model.Wallet{}, err
	}

	wf, err := readWalletFile(filepath.Join(dir, WalletFileName))
	if err != nil {
		return model.Wallet{}, err
	}

	ks, keyData, err := crypto.DecryptKey(filepath.Join(dir, KeystoreFileName), password)
	if err != nil {
		return model.Wallet{}, err
	}
	if len(keyData.PrivateKey) != 64 {
		clear(keyData.PrivateKey)
		return model.Wallet{}, fmt.Errorf("invalid private key length: expected 64 bytes")
	}

	key := solana.PrivateKey(keyData.PrivateKey)
	owner := key.PublicKey().String()
	if owner != ks.Owner || owner != wf.Owner {
		clear(keyData.PrivateKey)
		return model.Wallet{}, fmt.Errorf("private key does not match wallet owner %s", wf.Owner)
	}

	return model.Wallet{
		ID:     wf.ID,
		Owner:  owner,
		Key:    model.NewKeyMaterial(key),
		Chains: orderChains(wf.Chains, wf.DefaultChain),
	}, nil
}

// Rekey re-encrypts the keystore in dir with a new password.
func Rekey(dir string, oldPassword, newPassword []byte, opts ...FileOption) error {
	o := newFileOptions(opts)
	if err := ValidateWalletDir(dir); err != nil {
		return err
	}
	return crypto.ReencryptKey(filepath.Join(dir, KeystoreFileName), oldPassword, newPassword, o.params)
}

func readWalletFile(path string) (*model.WalletFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}
	var wf model.WalletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet file: %w", err)
	}
	if wf.ID == "" || wf.Owner == "" {
		return nil, fmt.Errorf("%w: wallet file has no id or owner", ErrInvalidWalletDir)
	}
	return &wf, nil
}

func orderChains(chains []model.ChainRef, defaultChain string) []model.ChainRef {
	out := make([]model.ChainRef, 0, len(chains))
	var def *model.ChainRef
	for i := range chains {
		if chains[i].ID == defaultChain && def == nil {
			def = &chains[i]
			continue
		}
		out = append(out, chains[i])
	}
	if def != nil {
		out = append(out, *def)
	}
	return out
}

// generateQRCode generates QR code of owner in base64
func generateQRCode(owner string) (string, error) {
	qr, err := qrcode.New(owner, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
