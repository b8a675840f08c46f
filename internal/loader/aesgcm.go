package loader

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// Magic prefixes every payload produced by AESGCM.Encrypt.
var Magic = []byte("NGENC1\n")

// AESGCM is a Cipher using AES-256-GCM with the layout magic|nonce|sealed.
type AESGCM struct{}

// IsEncrypted reports whether data carries the AESGCM header.
func (AESGCM) IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// Encrypt seals plaintext under a 32-byte key.
func (AESGCM) Encrypt(plain, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("loader: nonce: %w", err)
	}
	out := append([]byte{}, Magic...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, nil), nil
}

// Decrypt opens a payload produced by Encrypt.
func (AESGCM) Decrypt(data, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, Magic)
	if len(data) < aead.NonceSize() {
		return nil, errors.New("loader: payload too short")
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("loader: open: %w", err)
	}
	return plain, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("loader: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("loader: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
