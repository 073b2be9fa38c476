package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Scheme names. The prefix orders schemes by generation.
const (
	SchemeAES256GCM         = "v1.aes256gcm"
	SchemeXChaCha20Poly1305 = "v2.xchacha20poly1305"
)

// Scheme is one AEAD construction.
type Scheme interface {
	Name() string
	NewAEAD(key Key) (cipher.AEAD, error)
}

// aesGCM is AES-256-GCM with a 12-byte random nonce.
type aesGCM struct{}

func (aesGCM) Name() string { return SchemeAES256GCM }

func (aesGCM) NewAEAD(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// xChaCha is XChaCha20-Poly1305 with a 24-byte random nonce, large enough
// that random nonces never collide in practice for one account key.
type xChaCha struct{}

func (xChaCha) Name() string { return SchemeXChaCha20Poly1305 }

func (xChaCha) NewAEAD(key Key) (cipher.AEAD, error) {
	return chacha20poly1305.NewX(key[:])
}

// newNonce returns a random nonce sized for aead.
func newNonce(aead cipher.AEAD) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, nil
}
