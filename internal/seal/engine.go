package seal

import (
	"fmt"

	"github.com/roach88/shellsync/internal/record"
)

// Engine seals and opens record payloads. It carries the scheme registry
// and nothing else.
type Engine struct {
	schemes map[string]Scheme
	def     string
}

// NewEngine returns an engine that opens every known scheme and seals with
// XChaCha20-Poly1305.
func NewEngine() *Engine {
	e := &Engine{schemes: map[string]Scheme{}}
	e.Register(aesGCM{})
	e.Register(xChaCha{})
	e.def = SchemeXChaCha20Poly1305
	return e
}

// Register adds a scheme that Open can dispatch to.
func (e *Engine) Register(s Scheme) {
	e.schemes[s.Name()] = s
}

// WithDefault returns a copy of e that seals with the named scheme.
func (e *Engine) WithDefault(name string) (*Engine, error) {
	if _, ok := e.schemes[name]; !ok {
		return nil, &CryptoError{Kind: ErrKindUnknownScheme, Scheme: name, Message: "cannot seal with unregistered scheme"}
	}
	cp := &Engine{schemes: make(map[string]Scheme, len(e.schemes)), def: name}
	for k, v := range e.schemes {
		cp.schemes[k] = v
	}
	return cp, nil
}

// DefaultScheme returns the scheme used by Seal.
func (e *Engine) DefaultScheme() string {
	return e.def
}

// Seal encrypts plaintext bound to aad with the default scheme.
func (e *Engine) Seal(key Key, plaintext, aad []byte) (record.EncryptedData, error) {
	scheme := e.schemes[e.def]
	aead, err := scheme.NewAEAD(key)
	if err != nil {
		return record.EncryptedData{}, fmt.Errorf("seal: %w", err)
	}

	nonce, err := newNonce(aead)
	if err != nil {
		return record.EncryptedData{}, fmt.Errorf("seal: %w", err)
	}

	return record.EncryptedData{
		Scheme:     scheme.Name(),
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, aad),
	}, nil
}

// Open authenticates and decrypts data. Any mismatch of key, nonce, tag or
// aad yields an AuthenticationFailed CryptoError and no plaintext.
func (e *Engine) Open(key Key, data record.EncryptedData, aad []byte) ([]byte, error) {
	scheme, ok := e.schemes[data.Scheme]
	if !ok {
		return nil, &CryptoError{Kind: ErrKindUnknownScheme, Scheme: data.Scheme, Message: "no such scheme"}
	}

	aead, err := scheme.NewAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if len(data.Nonce) != aead.NonceSize() {
		return nil, authFailed(data.Scheme, fmt.Sprintf("nonce is %d bytes, expected %d", len(data.Nonce), aead.NonceSize()))
	}

	plaintext, err := aead.Open(nil, data.Nonce, data.Ciphertext, aad)
	if err != nil {
		return nil, authFailed(data.Scheme, "message authentication failed")
	}
	return plaintext, nil
}

// AAD returns the associated data binding a payload to its chain slot.
func AAD(host record.HostID, tag record.Tag, version string, idx record.Idx) ([]byte, error) {
	aad, err := record.MarshalCanonical(map[string]any{
		"host":    string(host),
		"tag":     string(tag),
		"version": version,
		"idx":     idx,
	})
	if err != nil {
		return nil, fmt.Errorf("aad: %w", err)
	}
	return aad, nil
}

// RecordAAD returns the associated data for an existing record's slot.
func RecordAAD(r record.Record) ([]byte, error) {
	return AAD(r.Host, r.Tag, r.Version, r.Idx)
}
