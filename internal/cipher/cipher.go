// Package cipher encrypts staged (pre-release) artifacts at rest. Staged
// files can be reachable on a publicly readable store before promotion, so
// they are sealed with a per-staged-upload password.
//
// The format is salt || nonce || AES-256-GCM ciphertext, with the key derived
// from the password via scrypt. Decryption failures are hard errors; a
// corrupted staged artifact is never served.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	// saltSize is the length of the random scrypt salt prepended to output.
	saltSize = 16
	// keySize selects AES-256.
	keySize = 32

	// scrypt cost parameters.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrMalformed indicates ciphertext too short to contain salt and nonce.
var ErrMalformed = errors.New("malformed ciphertext")

// deriveKey stretches the password into an AES-256 key.
func deriveKey(password string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	return key, nil
}

// newAEAD builds the AES-GCM cipher for a derived key.
func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initialise cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initialise gcm: %w", err)
	}

	return aead, nil
}

// Encrypt seals plaintext with the password.
func Encrypt(password string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)

	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt opens data sealed by Encrypt with the same password.
func Decrypt(password string, data []byte) ([]byte, error) {
	if len(data) < saltSize {
		return nil, ErrMalformed
	}

	salt, rest := data[:saltSize], data[saltSize:]

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(rest) < aead.NonceSize() {
		return nil, ErrMalformed
	}

	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt staged artifact: %w", err)
	}

	return plaintext, nil
}
