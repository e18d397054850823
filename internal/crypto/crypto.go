// Package crypto holds the primitives for the CMD Chat channel: RSA-OAEP
// key transport for the handshake, AES-256-GCM for session traffic, and
// PBKDF2 key derivation for the client's encrypted history.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// RSAKeySize is the handshake keypair size in bits.
	RSAKeySize = 2048

	// AESKeySize is the session key size in bytes (AES-256).
	AESKeySize = 32

	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12

	// PBKDFSaltSize is the default salt size for key derivation.
	PBKDFSaltSize = 16

	// PBKDFIterations is the PBKDF2-HMAC-SHA-256 iteration count.
	PBKDFIterations = 200_000

	// FileChunkSize is the raw chunk size for file transfers, before
	// base64 expansion. Sized so an encoded chunk plus envelope stays
	// well under the frame limit.
	FileChunkSize = 32 * 1024
)

// KeyPair bundles an RSA private key with its PEM-encoded public half.
type KeyPair struct {
	Private      *rsa.PrivateKey
	PublicKeyPEM []byte
}

// GenerateKeyPair creates a fresh 2048-bit RSA keypair and encodes the
// public key as a SubjectPublicKeyInfo PEM block.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, RSAKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "generate RSA keypair")
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "encode public key")
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return &KeyPair{Private: priv, PublicKeyPEM: pemBytes}, nil
}

// ParsePublicKey decodes a PEM SubjectPublicKeyInfo block and requires an
// RSA key inside.
func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block in public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse public key")
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("unsupported public key type %T", key)
	}
	return rsaKey, nil
}

// EncryptForPublicKey wraps payload with RSA-OAEP-SHA-256 (empty label).
func EncryptForPublicKey(pub *rsa.PublicKey, payload []byte) ([]byte, error) {
	out, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, payload, nil)
	return out, errors.Wrap(err, "RSA-OAEP encrypt")
}

// DecryptWithPrivateKey unwraps an RSA-OAEP-SHA-256 ciphertext.
func DecryptWithPrivateKey(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	out, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	return out, errors.Wrap(err, "RSA-OAEP decrypt")
}

// GenerateSymmetricKey returns a fresh random AES-256 key.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, AESKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "generate symmetric key")
	}
	return key, nil
}

// GenerateSalt returns a fresh random salt for key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, PBKDFSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "generate salt")
	}
	return salt, nil
}

// DeriveKey derives an AES-256 key from a passphrase with
// PBKDF2-HMAC-SHA-256. The salt must be at least 8 bytes.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) < 8 {
		return nil, errors.New("salt must be at least 8 bytes")
	}
	return pbkdf2.Key([]byte(passphrase), salt, PBKDFIterations, AESKeySize, sha256.New), nil
}

// SymmetricCipher wraps an AES-GCM AEAD bound to one session key. Every
// Encrypt call draws a fresh random nonce; a (key, nonce) pair is never
// reused.
type SymmetricCipher struct {
	key  []byte
	aead cipher.AEAD
}

// NewSymmetricCipher builds an AES-256-GCM cipher around key.
func NewSymmetricCipher(key []byte) (*SymmetricCipher, error) {
	if len(key) != AESKeySize {
		return nil, errors.Errorf("symmetric key must be %d bytes, got %d", AESKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "init AES")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "init GCM")
	}
	return &SymmetricCipher{key: key, aead: aead}, nil
}

// Key returns the raw session key.
func (c *SymmetricCipher) Key() []byte { return c.key }

// Encrypt seals plaintext under a fresh random nonce and returns
// (nonce, ciphertext||tag).
func (c *SymmetricCipher) Encrypt(plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, errors.Wrap(err, "generate nonce")
	}
	ciphertext = c.aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// Decrypt opens ciphertext||tag with the given nonce.
func (c *SymmetricCipher) Decrypt(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, errors.Errorf("nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	return plaintext, errors.Wrap(err, "AES-GCM decrypt")
}

// EncryptWithKey is a one-shot helper for callers that hold a raw key
// (the history store).
func EncryptWithKey(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	c, err := NewSymmetricCipher(key)
	if err != nil {
		return nil, nil, err
	}
	return c.Encrypt(plaintext)
}

// DecryptWithKey is the one-shot counterpart of EncryptWithKey.
func DecryptWithKey(key, nonce, ciphertext []byte) ([]byte, error) {
	c, err := NewSymmetricCipher(key)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(nonce, ciphertext)
}
