package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlexZinkM/linera-client/internal/model"
)

// ErrInvalidPassword is returned when the keystore cannot be opened with the
// given password.
var ErrInvalidPassword = errors.New("invalid password")

// DecryptKey reads and decrypts keystore.json
// password must be []byte for security (caller should zero it after use)
func DecryptKey(filePath string, password []byte) (*model.KeystoreFile, *model.KeyData, error) {
	ks, err := readKeystore(filePath)
	if err != nil {
		return nil, nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(ks.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(ks.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode nonce: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ks.CipherText)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aesGCM, err := newGCM(password, salt, Params{N: ks.ScryptN, R: ks.ScryptR, P: ks.ScryptP})
	if err != nil {
		return nil, nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, []byte(ks.Owner))
	if err != nil {
		return nil, nil, ErrInvalidPassword
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	var keyData model.KeyData
	if err := json.Unmarshal(plaintext, &keyData); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal key data: %w", err)
	}

	return ks, &keyData, nil
}

// ReencryptKey replaces the password of the keystore at filePath. The file is
// swapped atomically so a failure leaves the old keystore in place.
func ReencryptKey(filePath string, oldPassword, newPassword []byte, params Params) error {
	if len(newPassword) == 0 {
		return fmt.Errorf("password cannot be empty")
	}
	ks, keyData, err := DecryptKey(filePath, oldPassword)
	if err != nil {
		return err
	}
	defer clear(keyData.PrivateKey)

	sealed, err := seal(ks.Owner, keyData, newPassword, params)
	if err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(filePath), "."+filepath.Base(filePath)+".tmp")
	if err := writeKeystore(tmp, sealed); err != nil {
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace keystore: %w", err)
	}
	return nil
}

// ReadOwner reads only the owner from keystore.json (without decryption)
func ReadOwner(filePath string) (string, error) {
	ks, err := readKeystore(filePath)
	if err != nil {
		return "", err
	}
	return ks.Owner, nil
}

func readKeystore(filePath string) (*model.KeystoreFile, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("keystore %s does not exist: %w", filePath, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.Size() == 0 {
		return nil, errors.New("file is empty")
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var ks model.KeystoreFile
	if err := json.Unmarshal(fileData, &ks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keystore: %w", err)
	}
	if ks.ScryptN == 0 || ks.ScryptR == 0 || ks.ScryptP == 0 {
		return nil, errors.New("keystore has no scrypt parameters")
	}
	return &ks, nil
}
