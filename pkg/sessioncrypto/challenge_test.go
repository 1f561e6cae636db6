package sessioncrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
)

func TestNormalizeServerPubKeyStrips05Prefix(t *testing.T) {
	raw := append([]byte{0x05}, make([]byte, 32)...)
	out, err := NormalizeServerPubKey(raw)
	require.NoError(t, err)
	assert.Len(t, out, 32)
}

func TestNormalizeServerPubKeyPassesThrough32Bytes(t *testing.T) {
	raw := make([]byte, 32)
	out, err := NormalizeServerPubKey(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestNormalizeServerPubKeyRejectsBadLength(t *testing.T) {
	_, err := NormalizeServerPubKey(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecryptChallengeRoundTrip(t *testing.T) {
	var userPriv [32]byte
	_, err := rand.Read(userPriv[:])
	require.NoError(t, err)
	userPub, err := curve25519.X25519(userPriv[:], curve25519.Basepoint)
	require.NoError(t, err)

	var serverPriv [32]byte
	_, err = rand.Read(serverPriv[:])
	require.NoError(t, err)
	serverPub, err := curve25519.X25519(serverPriv[:], curve25519.Basepoint)
	require.NoError(t, err)

	shared, err := curve25519.X25519(serverPriv[:], userPub)
	require.NoError(t, err)
	key, err := deriveKey(shared)
	require.NoError(t, err)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := make([]byte, gcmNonceSize)
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	plaintext := []byte("token-abc123")
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	cipherText := append(append([]byte{}, nonce...), sealed...)

	decrypted, err := DecryptChallenge(userPriv[:], serverPub, cipherText)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptChallengeRejectsShortCiphertext(t *testing.T) {
	_, err := DecryptChallenge(make([]byte, 32), make([]byte, 32), make([]byte, 4))
	assert.Error(t, err)
}
