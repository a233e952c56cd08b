package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genKeyPair(t *testing.T) *KeyPair {
	t.Helper()
	kp, err := NewKeyManager().GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func TestKeyManager_ActivePairLifecycle(t *testing.T) {
	m := NewKeyManager()
	assert.Nil(t, m.ActiveKeyPair())

	kp, err := m.GenerateKeyPair()
	require.NoError(t, err)
	assert.Same(t, kp, m.ActiveKeyPair())

	// A second generation replaces the previously held pair.
	kp2, err := m.GenerateKeyPair()
	require.NoError(t, err)
	assert.Same(t, kp2, m.ActiveKeyPair())
	assert.NotSame(t, kp, kp2)

	m.ClearActiveKeyPair()
	assert.Nil(t, m.ActiveKeyPair())
}

func TestExportImportPublicKey_RoundTrip(t *testing.T) {
	kp := genKeyPair(t)

	encoded, err := ExportPublicKey(kp.Public)
	require.NoError(t, err)

	// Deterministic for a given key.
	encoded2, err := ExportPublicKey(kp.Public)
	require.NoError(t, err)
	assert.Equal(t, encoded, encoded2)

	pub, err := ImportPublicKey(encoded)
	require.NoError(t, err)
	assert.True(t, pub.Equal(kp.Public))
}

func TestImportPublicKey_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"not spki", "aGVsbG8gd29ybGQ="},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportPublicKey(tt.encoded)
			assert.ErrorIs(t, err, ErrInvalidKeyFormat)
		})
	}
}

func TestWrapPrivateKey_RoundTrip(t *testing.T) {
	kp := genKeyPair(t)
	password := []byte("secret1")

	blob, err := WrapPrivateKey(kp.Private, password)
	require.NoError(t, err)

	priv, err := UnwrapPrivateKey(blob, password)
	require.NoError(t, err)
	require.True(t, priv.Equal(kp.Private))

	// The reconstructed key still decrypts envelopes sealed for the
	// original public key.
	c := NewMessageCipher()
	env, err := c.EncryptFor([]byte("still works"), kp.Public)
	require.NoError(t, err)
	plaintext, err := c.DecryptWith(env, priv)
	require.NoError(t, err)
	assert.Equal(t, []byte("still works"), plaintext)
}

func TestWrapPrivateKey_SaltedPerCall(t *testing.T) {
	kp := genKeyPair(t)
	password := []byte("secret1")

	blob1, err := WrapPrivateKey(kp.Private, password)
	require.NoError(t, err)
	blob2, err := WrapPrivateKey(kp.Private, password)
	require.NoError(t, err)

	// Random salt and nonce per wrap: same key, same password, distinct blobs.
	assert.NotEqual(t, blob1, blob2)
}

func TestUnwrapPrivateKey_WrongPassword(t *testing.T) {
	kp := genKeyPair(t)

	blob, err := WrapPrivateKey(kp.Private, []byte("secret1"))
	require.NoError(t, err)

	_, err = UnwrapPrivateKey(blob, []byte("secret2"))
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestUnwrapPrivateKey_CorruptedBlob(t *testing.T) {
	kp := genKeyPair(t)

	blob, err := WrapPrivateKey(kp.Private, []byte("secret1"))
	require.NoError(t, err)

	tests := []struct {
		name string
		blob string
	}{
		{"not base64", "***"},
		{"truncated", blob[:8]},
		{"tampered", "AAAA" + blob[4:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnwrapPrivateKey(tt.blob, []byte("secret1"))
			// Fails closed with the same opaque error in every case.
			assert.ErrorIs(t, err, ErrInvalidPassword)
		})
	}
}
