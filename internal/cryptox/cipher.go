package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/dmitrijs2005/gophgram/internal/common"
)

const (
	envelopeKeySize   = 32
	envelopeNonceSize = 12
)

// Envelope is the three-part ciphertext bundle produced for one message to
// one recipient: the one-time AES key wrapped with the recipient's RSA-OAEP
// public key, the GCM nonce, and the sealed message. All fields are base64.
type Envelope struct {
	EncryptedKey     string `json:"encryptedKey"`
	IV               string `json:"iv"`
	EncryptedMessage string `json:"encryptedMessage"`
}

// Marshal encodes the envelope as the opaque content string carried by the
// server-side ledger, which never sees plaintext.
func (e *Envelope) Marshal() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseEnvelope decodes a content string produced by Envelope.Marshal.
func ParseEnvelope(content string) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(content), &e); err != nil {
		return nil, ErrDecryption
	}
	if e.EncryptedKey == "" || e.IV == "" || e.EncryptedMessage == "" {
		return nil, ErrDecryption
	}
	return &e, nil
}

// MessageCipher performs per-message hybrid encryption. It is stateless
// apart from a cache of known recipients' imported public keys.
type MessageCipher struct {
	mu         sync.RWMutex
	recipients map[string]*rsa.PublicKey
}

func NewMessageCipher() *MessageCipher {
	return &MessageCipher{recipients: make(map[string]*rsa.PublicKey)}
}

// EncryptFor seals plaintext for the given recipient. A fresh AES-256 key
// and 12-byte nonce are generated per call and never reused, so identical
// plaintexts produce distinct envelopes.
func (c *MessageCipher) EncryptFor(plaintext []byte, recipient *rsa.PublicKey) (*Envelope, error) {
	key := common.GenerateRandByteArray(envelopeKeySize)
	defer common.WipeByteArray(key)
	nonce := common.GenerateRandByteArray(envelopeNonceSize)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)

	encryptedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, recipient, key, nil)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		EncryptedKey:     base64.StdEncoding.EncodeToString(encryptedKey),
		IV:               base64.StdEncoding.EncodeToString(nonce),
		EncryptedMessage: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// DecryptWith opens an envelope with the recipient's private key. A wrong
// key, a tampered ciphertext, and a malformed envelope all surface as the
// single opaque ErrDecryption.
func (c *MessageCipher) DecryptWith(env *Envelope, priv *rsa.PrivateKey) ([]byte, error) {
	encryptedKey, err := base64.StdEncoding.DecodeString(env.EncryptedKey)
	if err != nil {
		return nil, ErrDecryption
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, ErrDecryption
	}
	sealed, err := base64.StdEncoding.DecodeString(env.EncryptedMessage)
	if err != nil {
		return nil, ErrDecryption
	}

	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, encryptedKey, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryption
	}

	plaintext, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// StoreRecipientKey imports and caches a recipient's public key for reuse.
// Idempotent; last write wins.
func (c *MessageCipher) StoreRecipientKey(username, publicKeyBase64 string) error {
	pub, err := ImportPublicKey(publicKeyBase64)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recipients[username] = pub
	return nil
}

// RecipientKey returns the cached public key for a username, if known.
func (c *MessageCipher) RecipientKey(username string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pub, ok := c.recipients[username]
	return pub, ok
}
