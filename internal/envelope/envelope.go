// Package envelope seals wallet secrets.
//
// A wallet passphrase is stretched with argon2id into a key that seals a
// random data key (SealWithParams/Open). Records inside the wallet are then sealed with
// the data key directly (SealWithKey/OpenWithKey), so the slow KDF runs once
// per open rather than once per record.
package envelope

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "DIDKEYENC1\n"
	kdfName         = "argon2id"
)

var (
	ErrAuthFailed = errors.New("envelope: authentication failed")
	ErrInvalid    = errors.New("envelope: invalid envelope")
)

// Params are argon2id cost parameters. They are recorded in each envelope,
// so changing the defaults never breaks existing wallets.
type Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultParams are the cost used for new stores.
var DefaultParams = Params{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

// MaxParams is the highest cost Open accepts from an envelope.
var MaxParams = Params{Time: 16, MemoryKB: 1 << 20, Threads: 16}

func (p Params) valid() bool {
	return p.Time != 0 && p.MemoryKB != 0 && p.Threads != 0 &&
		p.Time <= MaxParams.Time && p.MemoryKB <= MaxParams.MemoryKB && p.Threads <= MaxParams.Threads
}

type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// SealWithParams encrypts plaintext under passphrase with the given KDF cost.
func SealWithParams(passphrase string, plaintext []byte, p Params) ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("envelope: invalid kdf params %+v", p)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, p)
	defer Zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(&Envelope{
		Version:     envelopeVersion,
		KDF:         kdfName,
		KDFTime:     p.Time,
		KDFMemoryKB: p.MemoryKB,
		KDFThreads:  p.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, nil),
	})
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

// Open decrypts data produced by SealWithParams. A wrong passphrase yields ErrAuthFailed;
// malformed input yields ErrInvalid.
func Open(passphrase string, data []byte) ([]byte, error) {
	if !strings.HasPrefix(string(data), filePrefix) {
		return nil, ErrInvalid
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return nil, ErrInvalid
	}
	p := Params{Time: env.KDFTime, MemoryKB: env.KDFMemoryKB, Threads: env.KDFThreads}
	if env.Version != envelopeVersion || env.KDF != kdfName || len(env.Salt) != saltSize ||
		len(env.Nonce) != chacha20poly1305.NonceSizeX || !p.valid() {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt, p)
	defer Zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// NewDataKey returns a random key for SealWithKey.
func NewDataKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// SealWithKey encrypts plaintext with a data key, binding aad. The output is
// nonce || ciphertext.
func SealWithKey(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// OpenWithKey reverses SealWithKey.
func OpenWithKey(key, sealed, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, ErrInvalid
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKB, p.Threads, chacha20poly1305.KeySize)
}

// Zero overwrites b.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
