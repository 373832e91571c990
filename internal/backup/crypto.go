package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Sealed snapshots are laid out as
// [4-byte magic][16-byte salt][12-byte nonce][AES-256-GCM ciphertext].
var magic = []byte("CWB1")

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

var (
	ErrNotSnapshot   = errors.New("not a chorewheel snapshot")
	ErrBadPassphrase = errors.New("wrong passphrase or corrupted snapshot")
)

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeriveKey derives an AES-256 key from the passphrase with Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts a database snapshot under a fresh salt and nonce.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("seal snapshot: empty passphrase")
	}
	salt, err := randomBytes(saltSize)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce, err := randomBytes(nonceSize)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	gcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, len(magic)+saltSize+nonceSize)
	header = append(header, magic...)
	header = append(header, salt...)
	header = append(header, nonce...)

	out := make([]byte, 0, len(header)+len(plaintext)+gcm.Overhead())
	out = append(out, header...)
	// The header is authenticated along with the payload.
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// Open reverses Seal.
func Open(sealed []byte, passphrase string) ([]byte, error) {
	header := len(magic) + saltSize + nonceSize
	if len(sealed) < header || !bytes.Equal(sealed[:len(magic)], magic) {
		return nil, ErrNotSnapshot
	}
	salt := sealed[len(magic) : len(magic)+saltSize]
	nonce := sealed[len(magic)+saltSize : header]

	gcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed[header:], sealed[:header])
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}
