package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyTransportRoundTrip(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Contains(t, string(pair.PublicKeyPEM), "BEGIN PUBLIC KEY")

	pub, err := ParsePublicKey(pair.PublicKeyPEM)
	require.NoError(t, err)

	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	require.Len(t, key, AESKeySize)

	wrapped, err := EncryptForPublicKey(pub, key)
	require.NoError(t, err)
	assert.NotEqual(t, key, wrapped)

	unwrapped, err := DecryptWithPrivateKey(pair.Private, wrapped)
	require.NoError(t, err)
	assert.Equal(t, key, unwrapped)
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKey([]byte("not a pem block"))
	assert.Error(t, err)
}

func TestSymmetricCipherRoundTrip(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	c, err := NewSymmetricCipher(key)
	require.NoError(t, err)

	plaintext := []byte(`{"type":"chat","message":"hello"}`)
	nonce, ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.Len(t, nonce, NonceSize)
	// GCM appends a 16-byte tag.
	assert.Len(t, ciphertext, len(plaintext)+16)

	got, err := c.Decrypt(nonce, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	c, err := NewSymmetricCipher(key)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		nonce, _, err := c.Encrypt([]byte("x"))
		require.NoError(t, err)
		_, dup := seen[string(nonce)]
		require.False(t, dup, "nonce reused")
		seen[string(nonce)] = struct{}{}
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	c, err := NewSymmetricCipher(key)
	require.NoError(t, err)

	nonce, ciphertext, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	ciphertext[0] ^= 0xff
	_, err = c.Decrypt(nonce, ciphertext)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongNonceSize(t *testing.T) {
	key, err := GenerateSymmetricKey()
	require.NoError(t, err)
	c, err := NewSymmetricCipher(key)
	require.NoError(t, err)

	_, err = c.Decrypt(make([]byte, NonceSize-1), []byte("x"))
	assert.Error(t, err)
}

func TestNewSymmetricCipherRejectsShortKey(t *testing.T) {
	_, err := NewSymmetricCipher(make([]byte, 16))
	assert.Error(t, err)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	require.Len(t, salt, PBKDFSaltSize)

	k1, err := DeriveKey("passphrase", salt)
	require.NoError(t, err)
	k2, err := DeriveKey("passphrase", salt)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, AESKeySize)

	other, err := DeriveKey("different", salt)
	require.NoError(t, err)
	assert.NotEqual(t, k1, other)
}

func TestDeriveKeyRejectsShortSalt(t *testing.T) {
	_, err := DeriveKey("passphrase", make([]byte, 7))
	assert.Error(t, err)
}

func TestOneShotHelpersRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	key, err := DeriveKey("secret", salt)
	require.NoError(t, err)

	nonce, ciphertext, err := EncryptWithKey(key, []byte("history"))
	require.NoError(t, err)
	got, err := DecryptWithKey(key, nonce, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("history"), got)
}
