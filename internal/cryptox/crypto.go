// Package cryptox seals small payloads with AES-GCM under a key derived from
// a passphrase.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/idlink/internal/common"
	"golang.org/x/crypto/argon2"
)

const envelopeVersion = 1

var ErrDecrypt = errors.New("decrypt failed")

// DeriveKey stretches passphrase into a 32-byte AES-256 key with argon2id.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// envelope is the stored form of a sealed payload. It is itself JSON, so
// sealed values fit JSON columns.
type envelope struct {
	Version int    `json:"v"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// Sealer encrypts and decrypts payloads with one AES-GCM key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer. The key must be 16, 24 or 32 bytes.
func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aesgcm}, nil
}

// NewPassphraseSealer derives the key from passphrase and salt.
func NewPassphraseSealer(passphrase, salt string) (*Sealer, error) {
	return NewSealer(DeriveKey([]byte(passphrase), []byte(salt)))
}

// Seal encrypts plaintext with a fresh random nonce and returns the JSON
// envelope.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := common.RandomBytes(s.aead.NonceSize())

	return json.Marshal(envelope{
		Version: envelopeVersion,
		Nonce:   nonce,
		Data:    s.aead.Seal(nil, nonce, plaintext, nil),
	})
}

// Open reverses Seal. Input that is not an envelope is returned unchanged,
// so rows written before sealing was enabled stay readable.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil || env.Version != envelopeVersion || len(env.Nonce) == 0 {
		return sealed, nil
	}
	if len(env.Nonce) != s.aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce size %d", ErrDecrypt, len(env.Nonce))
	}

	plaintext, err := s.aead.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}
