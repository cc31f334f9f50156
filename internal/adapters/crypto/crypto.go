// Package crypto encrypts recording URLs at rest (spec §4.6: "the recording
// URL is encrypted before being persisted"). Each user gets an independent
// key derived from one master secret via HKDF, so no per-user key material
// needs to be stored or rotated separately from the master secret itself.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Encryptor encrypts and decrypts recording URLs.
type Encryptor struct {
	master []byte
}

// New constructs an Encryptor from a master secret (spec §6's
// ENCRYPTION_MASTER_KEY). The secret must be at least 32 bytes.
func New(masterSecret []byte) (*Encryptor, error) {
	if len(masterSecret) < 32 {
		return nil, fmt.Errorf("crypto: master secret must be at least 32 bytes")
	}
	master := make([]byte, len(masterSecret))
	copy(master, masterSecret)
	return &Encryptor{master: master}, nil
}

// Encrypt encrypts plaintext under userID's derived key and returns
// base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(userID, plaintext string) (string, error) {
	gcm, err := e.gcmFor(userID)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. userID must match the one passed to Encrypt.
func (e *Encryptor) Decrypt(userID, encoded string) (string, error) {
	gcm, err := e.gcmFor(userID)
	if err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("crypto: base64 decode: %w", err)
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return "", fmt.Errorf("crypto: ciphertext too short")
	}
	nonce, sealed := data[:n], data[n:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt: %w", err)
	}
	return string(plaintext), nil
}

func (e *Encryptor) gcmFor(userID string) (cipher.AEAD, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, e.master, nil, []byte("reflectcall-recording:"+userID))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: create gcm: %w", err)
	}
	return gcm, nil
}
