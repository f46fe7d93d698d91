package db

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// encrypt plaintext with AES-GCM, nonce prepended to the returned
// ciphertext. passphrase must be 16, 24 or 32 bytes.
func Encrypt(text string, passphrase string) ([]byte, error) {
	gcm, err := newGCM(passphrase)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, []byte(text), nil), nil
}

func Decrypt(ciphertext []byte, passphrase string) (string, error) {
	gcm, err := newGCM(passphrase)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func newGCM(passphrase string) (cipher.AEAD, error) {
	switch len(passphrase) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("passphrase must be 16, 24 or 32 bytes, got %d", len(passphrase))
	}

	c, err := aes.NewCipher([]byte(passphrase))
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(c)
}
