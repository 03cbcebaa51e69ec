// Package secretbox encrypts and hashes single secret strings for the
// credential vault.
//
// Each Encrypt call draws a fresh salt and nonce. The AES-256 key is
// derived from the master secret and the salt with scrypt, and the salt
// is bound to the ciphertext as GCM additional data. The returned blob
// is base64 over a CBOR envelope carrying salt, nonce, tag and
// ciphertext, so Decrypt needs nothing but the blob and the master secret.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"safepath/internal/pkg/apperr"

	"golang.org/x/crypto/scrypt"
)

const (
	// MinMasterSecretLen is the shortest master secret the codec accepts.
	MinMasterSecretLen = 32

	saltSize  = 16
	nonceSize = 12
	tagSize   = 16
	keySize   = 32

	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

var (
	ErrConfiguration = apperr.New(apperr.KindConfiguration, "VAULT_MISCONFIGURED",
		"vault master secret is missing or shorter than 32 bytes")
	ErrDecrypt = errors.New("secretbox: decryption failed")
)

// Codec is safe for concurrent use.
type Codec struct {
	master []byte
}

// New never fails. A missing or short master secret is reported by
// Validate and by every Encrypt and Decrypt call.
func New(masterSecret string) *Codec {
	return &Codec{master: []byte(masterSecret)}
}

func (c *Codec) Validate() error {
	if c == nil || len(c.master) < MinMasterSecretLen {
		return ErrConfiguration
	}
	return nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("secretbox: read salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretbox: read nonce: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), salt)
	split := len(sealed) - tagSize

	raw, err := marshalEnvelope(envelope{
		Version:    envelopeVersion,
		Salt:       salt,
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	})
	if err != nil {
		return "", fmt.Errorf("secretbox: encode envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt fails closed: any decoding, version or authentication problem
// yields ErrDecrypt and an empty string.
func (c *Codec) Decrypt(blob string) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", ErrDecrypt
	}
	env, err := unmarshalEnvelope(raw)
	if err != nil {
		return "", ErrDecrypt
	}

	aead, err := c.aead(env.Salt)
	if err != nil {
		return "", ErrDecrypt
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plain, err := aead.Open(nil, env.Nonce, sealed, env.Salt)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Hash is the hex SHA-256 of plaintext. It is only used for equality
// checks against stored digests.
func (c *Codec) Hash(plaintext string) string {
	return Hash(plaintext)
}

func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// HashEqual compares two hex digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.master, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("secretbox: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
