// Package cryptox implements the client-side cryptography of Gophgram:
// RSA-OAEP identity key management with password-based private-key wrapping,
// and per-message hybrid encryption (one-time AES-256-GCM key wrapped with
// the recipient's RSA public key).
//
// Primitives come from the standard library and golang.org/x/crypto; this
// package only composes them.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dmitrijs2005/gophgram/internal/common"
)

const (
	rsaKeyBits = 2048

	// Private-key wrapping parameters. The salt is random per wrap and
	// stored in the blob, so the same password produces distinct blobs.
	wrapSaltSize   = 16
	wrapNonceSize  = 12
	wrapKeySize    = 32
	wrapIterations = 100000
)

// KeyPair is an RSA-OAEP identity key pair. The private half never leaves
// the client process unencrypted.
type KeyPair struct {
	Public  *rsa.PublicKey
	Private *rsa.PrivateKey
}

// KeyManager produces and reconstitutes identity keys and holds the single
// active key pair of the current client session.
type KeyManager struct {
	mu     sync.Mutex
	active *KeyPair
}

func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// GenerateKeyPair produces a fresh 2048-bit RSA key pair and makes it the
// active pair, replacing any previously held one.
func (m *KeyManager) GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	kp := &KeyPair{Public: &priv.PublicKey, Private: priv}
	m.SetActiveKeyPair(kp)
	return kp, nil
}

// SetActiveKeyPair replaces the in-memory identity of the session.
func (m *KeyManager) SetActiveKeyPair(kp *KeyPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = kp
}

// ActiveKeyPair returns the current identity, or nil when logged out.
func (m *KeyManager) ActiveKeyPair() *KeyPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ClearActiveKeyPair drops the reference to the identity so the garbage
// collector can reclaim the key material (logout path).
func (m *KeyManager) ClearActiveKeyPair() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
}

// ExportPublicKey serializes a public key to SPKI and encodes it as base64.
// The output is deterministic for a given key.
func ExportPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ImportPublicKey is the inverse of ExportPublicKey.
func ImportPublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}

	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}

	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKeyFormat)
	}
	return pub, nil
}

// WrapPrivateKey encrypts the PKCS8-serialized private key with AES-256-GCM
// under a key derived from the password with PBKDF2 (SHA-256, 100000
// iterations). A fresh random salt and nonce are generated per call and
// stored in the blob: base64(salt || nonce || ciphertext).
func WrapPrivateKey(priv *rsa.PrivateKey, password []byte) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("serializing private key: %w", err)
	}

	salt := common.GenerateRandByteArray(wrapSaltSize)
	nonce := common.GenerateRandByteArray(wrapNonceSize)
	key := pbkdf2.Key(password, salt, wrapIterations, wrapKeySize, sha256.New)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	blob := make([]byte, 0, wrapSaltSize+wrapNonceSize+len(der)+aesgcm.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = aesgcm.Seal(blob, nonce, der, nil)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// UnwrapPrivateKey is the inverse of WrapPrivateKey. Any failure — wrong
// password, truncated blob, tampered ciphertext — surfaces as the single
// opaque ErrInvalidPassword.
func UnwrapPrivateKey(encoded string, password []byte) (*rsa.PrivateKey, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidPassword
	}
	if len(blob) < wrapSaltSize+wrapNonceSize {
		return nil, ErrInvalidPassword
	}

	salt := blob[:wrapSaltSize]
	nonce := blob[wrapSaltSize : wrapSaltSize+wrapNonceSize]
	ciphertext := blob[wrapSaltSize+wrapNonceSize:]

	key := pbkdf2.Key(password, salt, wrapIterations, wrapKeySize, sha256.New)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, ErrInvalidPassword
	}

	der, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassword
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, ErrInvalidPassword
	}

	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidPassword
	}
	return priv, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
