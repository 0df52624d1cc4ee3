package did

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
)

// Scheme selects the signature scheme used to synthesize an identifier.
//
// The set is closed: SchemeEd25519 is the only supported value. The zero
// value is SchemeUnknown so that an unset selector is rejected rather than
// silently defaulted.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeEd25519
)

func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "OKP/Ed25519"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// KeyType returns the key type produced by s, or "" if s is unsupported.
func (s Scheme) KeyType() KeyType {
	switch s {
	case SchemeEd25519:
		return KeyTypeEd25519
	default:
		return ""
	}
}

// ParseScheme accepts "ed25519" or "okp/ed25519", case-insensitively.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ed25519", "okp/ed25519":
		return SchemeEd25519, nil
	default:
		return SchemeUnknown, newError(KindUnsupportedScheme, fmt.Sprintf("unsupported signature scheme %q", s))
	}
}

// KeyType names the curve of a key pair.
type KeyType string

const KeyTypeEd25519 KeyType = "Ed25519"

// KeyPair is engine-managed key material.
//
// The private half never leaves the value except through ExportSeed, which
// returns a copy. String, Format and MarshalJSON render only the public half.
type KeyPair struct {
	keyType KeyType
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh key pair for scheme from rand.
// A failing rand is reported as KindKeyGeneration; there is no fallback source.
func GenerateKeyPair(scheme Scheme, rand io.Reader) (*KeyPair, error) {
	if scheme != SchemeEd25519 {
		return nil, newError(KindUnsupportedScheme, fmt.Sprintf("unsupported signature scheme %s", scheme))
	}
	if rand == nil {
		return nil, newError(KindKeyGeneration, "no secure random source")
	}
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, wrapError(KindKeyGeneration, "generate ed25519 key", err)
	}
	return &KeyPair{keyType: KeyTypeEd25519, public: pub, private: priv}, nil
}

// KeyPairFromSeed restores a key pair from a seed previously obtained with ExportSeed.
func KeyPairFromSeed(keyType KeyType, seed []byte) (*KeyPair, error) {
	if keyType != KeyTypeEd25519 {
		return nil, newError(KindUnsupportedScheme, fmt.Sprintf("unsupported key type %q", keyType))
	}
	if l := len(seed); l != ed25519.SeedSize {
		return nil, newError(KindEncoding, fmt.Sprintf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, l))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &KeyPair{keyType: keyType, public: pub, private: priv}, nil
}

func (kp *KeyPair) Type() KeyType { return kp.keyType }

// PublicKey returns a copy of the raw public key bytes.
func (kp *KeyPair) PublicKey() []byte {
	return append([]byte(nil), kp.public...)
}

// ExportSeed returns a copy of the private seed for the store collaborator.
func (kp *KeyPair) ExportSeed() ([]byte, error) {
	if kp.private == nil {
		return nil, newError(KindKeyStorage, "key pair private material destroyed")
	}
	return append([]byte(nil), kp.private.Seed()...), nil
}

// Sign signs message with the private key.
func (kp *KeyPair) Sign(message []byte) ([]byte, error) {
	if kp.private == nil {
		return nil, newError(KindKeyGeneration, "key pair private material destroyed")
	}
	return ed25519.Sign(kp.private, message), nil
}

// Verify checks sig over message against the public key.
func (kp *KeyPair) Verify(message, sig []byte) bool {
	return ed25519.Verify(kp.public, message, sig)
}

// Destroy zeroes the private material. Calling it twice is safe.
func (kp *KeyPair) Destroy() {
	for i := range kp.private {
		kp.private[i] = 0
	}
	kp.private = nil
}

func (kp *KeyPair) String() string {
	enc, err := encodePublicKey(kp.keyType, kp.public)
	if err != nil {
		return fmt.Sprintf("KeyPair(%s, invalid)", kp.keyType)
	}
	return fmt.Sprintf("KeyPair(%s, %s)", kp.keyType, enc)
}

// Format keeps %v, %+v and %#v from printing private material.
func (kp *KeyPair) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, kp.String())
}

func (kp *KeyPair) MarshalJSON() ([]byte, error) {
	enc, err := encodePublicKey(kp.keyType, kp.public)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type               KeyType `json:"type"`
		PublicKeyMultibase string  `json:"publicKeyMultibase"`
	}{kp.keyType, enc})
}
