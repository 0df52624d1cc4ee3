package did

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
)

// keyCodec describes how a key type is tagged inside a did:key.
type keyCodec struct {
	keyType    KeyType
	codec      uint64
	size       int
	methodType string
}

var keyCodecs = []keyCodec{
	{keyType: KeyTypeEd25519, codec: 0xed, size: 32, methodType: "Ed25519VerificationKey2020"},
}

func codecForType(kt KeyType) (keyCodec, bool) {
	for _, s := range keyCodecs {
		if s.keyType == kt {
			return s, true
		}
	}
	return keyCodec{}, false
}

func codecForPrefix(codec uint64) (keyCodec, bool) {
	for _, s := range keyCodecs {
		if s.codec == codec {
			return s, true
		}
	}
	return keyCodec{}, false
}

// encodePublicKey returns multibase(base58btc, varint(codec) || pub).
func encodePublicKey(kt KeyType, pub []byte) (string, error) {
	kc, ok := codecForType(kt)
	if !ok {
		return "", newError(KindEncoding, fmt.Sprintf("unsupported key type %q", kt))
	}
	if l := len(pub); l != kc.size {
		return "", newError(KindEncoding, fmt.Sprintf("%s public key must be %d bytes, got %d", kt, kc.size, l))
	}
	prefix := varint.ToUvarint(kc.codec)
	buf := make([]byte, 0, len(prefix)+len(pub))
	buf = append(buf, prefix...)
	buf = append(buf, pub...)
	enc, err := multibase.Encode(multibase.Base58BTC, buf)
	if err != nil {
		return "", wrapError(KindEncoding, "multibase encode", err)
	}
	return enc, nil
}

// decodePublicKey is the inverse of encodePublicKey. Only base58btc is accepted
// so that one key has exactly one textual form.
func decodePublicKey(s string) (KeyType, []byte, error) {
	if s == "" {
		return "", nil, newError(KindEncoding, "empty multibase key")
	}
	base, data, err := multibase.Decode(s)
	if err != nil {
		return "", nil, wrapError(KindEncoding, "multibase decode", err)
	}
	if base != multibase.Base58BTC {
		return "", nil, newError(KindEncoding, fmt.Sprintf("multibase key must be base58btc, got %q", s[:1]))
	}
	codec, n, err := varint.FromUvarint(data)
	if err != nil {
		return "", nil, wrapError(KindEncoding, "multicodec prefix", err)
	}
	kc, ok := codecForPrefix(codec)
	if !ok {
		return "", nil, newError(KindEncoding, fmt.Sprintf("unsupported multicodec 0x%x", codec))
	}
	pub := data[n:]
	if l := len(pub); l != kc.size {
		return "", nil, newError(KindEncoding, fmt.Sprintf("%s public key must be %d bytes, got %d", kc.keyType, kc.size, l))
	}
	return kc.keyType, bytes.Clone(pub), nil
}

// FromPublicKey derives the did:key identifier for a raw public key.
// The result depends only on kt and pub.
func FromPublicKey(kt KeyType, pub []byte) (DID, error) {
	enc, err := encodePublicKey(kt, pub)
	if err != nil {
		return "", err
	}
	return DID("did:" + MethodKey + ":" + enc), nil
}

// ParseDID checks that s is a well-formed did:key and returns it.
func ParseDID(s string) (DID, error) {
	if _, _, err := PublicKeyFromDID(DID(s)); err != nil {
		return "", err
	}
	return DID(s), nil
}

// PublicKeyFromDID decodes the key type and raw public key bytes from a did:key.
func PublicKeyFromDID(id DID) (KeyType, []byte, error) {
	prefix := "did:" + MethodKey + ":"
	s := string(id)
	if !strings.HasPrefix(s, prefix) {
		return "", nil, newError(KindEncoding, fmt.Sprintf("not a did:key identifier: %q", s))
	}
	msid := strings.TrimPrefix(s, prefix)
	if strings.ContainsAny(msid, ":#/?") {
		return "", nil, newError(KindEncoding, fmt.Sprintf("malformed did:key method-specific id %q", msid))
	}
	return decodePublicKey(msid)
}

func verificationMethodType(kt KeyType) string {
	kc, _ := codecForType(kt)
	return kc.methodType
}
