package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/AlexZinkM/linera-client/internal/model"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12
)

// Params are the scrypt cost parameters. They are stored next to the
// ciphertext so a keystore stays readable after the defaults change.
type Params struct {
	N int
	R int
	P int
}

// DefaultParams: N=2^18 (~256MB RAM, 0.5-2s per derivation)
func DefaultParams() Params {
	return Params{N: 1 << 18, R: 8, P: 1}
}

// EncryptKey encrypts keyData with password and writes keystore.json to
// filePath. An existing non-empty file is never overwritten.
// password must be []byte for security (caller should zero it after use)
func EncryptKey(filePath, owner string, keyData *model.KeyData, password []byte, params Params) error {
	if len(password) == 0 {
		return fmt.Errorf("password cannot be empty")
	}
	if info, err := os.Stat(filePath); err == nil && info.Size() > 0 {
		return fmt.Errorf("file is not empty: %w", os.ErrExist)
	}

	ks, err := seal(owner, keyData, password, params)
	if err != nil {
		return err
	}
	return writeKeystore(filePath, ks)
}

func seal(owner string, keyData *model.KeyData, password []byte, params Params) (*model.KeystoreFile, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	aesGCM, err := newGCM(password, salt, params)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key data: %w", err)
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	ciphertext := aesGCM.Seal(nil, nonce, plaintext, []byte(owner))

	return &model.KeystoreFile{
		Owner:      owner,
		ScryptN:    params.N,
		ScryptR:    params.R,
		ScryptP:    params.P,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func newGCM(password, salt []byte, params Params) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, params.N, params.R, params.P, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}

func writeKeystore(filePath string, ks *model.KeystoreFile) error {
	fileData, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore: %w", err)
	}
	if err := os.WriteFile(filePath, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
