// Package sessioncrypto implements the ECDH primitive the open-group
// challenge exchange needs: deriving a shared
// symmetric key from the caller's Curve25519 private key and the
// server's public key, then AES-GCM-decrypting the IV-prefixed
// ciphertext the challenge endpoint returns.
package sessioncrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"crypto/sha256"
	"io"
)

// gcmNonceSize is the IV length AES-GCM expects; the challenge endpoint
// prefixes the ciphertext with exactly this many bytes.
const gcmNonceSize = 12

// hkdfInfo disambiguates this key derivation from any other use of the
// same shared secret.
var hkdfInfo = []byte("loki-open-group-challenge")

// NormalizeServerPubKey strips the leading 0x05 Session ID version byte
// a 33-byte server public key carries, returning the bare 32-byte
// Curve25519 key unchanged when it was already 32 bytes.
func NormalizeServerPubKey(raw []byte) ([]byte, error) {
	switch len(raw) {
	case 32:
		return raw, nil
	case 33:
		if raw[0] != 0x05 {
			return nil, errs.NewParsingFailed(fmt.Errorf("unexpected 33-byte key prefix 0x%02x", raw[0]))
		}
		return raw[1:], nil
	default:
		return nil, errs.NewParsingFailed(fmt.Errorf("server public key must be 32 or 33 bytes, got %d", len(raw)))
	}
}

// DecryptChallenge derives a shared key via X25519(userPrivateKey,
// serverPubKey), expands it with HKDF-SHA256, and AES-GCM-decrypts
// cipherText (IV || ciphertext || tag), returning the plaintext token.
func DecryptChallenge(userPrivateKey, serverPubKey, cipherText []byte) ([]byte, error) {
	if len(cipherText) < gcmNonceSize {
		return nil, errs.NewParsingFailed(fmt.Errorf("ciphertext shorter than nonce: %d bytes", len(cipherText)))
	}

	shared, err := curve25519.X25519(userPrivateKey, serverPubKey)
	if err != nil {
		return nil, errs.Wrap(errs.KindGeneric, fmt.Errorf("derive shared secret: %w", err))
	}

	key, err := deriveKey(shared)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(errs.KindGeneric, fmt.Errorf("build AES cipher: %w", err))
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.KindGeneric, fmt.Errorf("build GCM: %w", err))
	}

	nonce, sealed := cipherText[:gcmNonceSize], cipherText[gcmNonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindGeneric, fmt.Errorf("decrypt challenge: %w", err))
	}
	return plaintext, nil
}

// deriveKey expands a 32-byte AES-256 key from the raw ECDH shared secret.
func deriveKey(shared []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, shared, nil, hkdfInfo)
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errs.Wrap(errs.KindGeneric, fmt.Errorf("hkdf expand: %w", err))
	}
	return key, nil
}
