package cryptox

import "errors"

var (
	// ErrKeyGeneration is returned when the platform crypto provider cannot
	// produce a key pair.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrInvalidKeyFormat is returned when an exported key cannot be parsed.
	ErrInvalidKeyFormat = errors.New("invalid key format")

	// ErrInvalidPassword is the single error surfaced by UnwrapPrivateKey.
	// Wrong password and corrupted blob are deliberately indistinguishable.
	ErrInvalidPassword = errors.New("invalid password or corrupted key")

	// ErrDecryption is the single error surfaced by DecryptWith. Wrong key
	// and tampered ciphertext are deliberately indistinguishable.
	ErrDecryption = errors.New("cannot decrypt message")
)
