// Package did synthesizes and resolves did:key identifiers.
//
// An identifier is derived from a freshly generated Ed25519 public key:
//
//	did:key:z<base58btc(varint(0xed) || public key)>
//
// The derivation is pure, so the same key always yields the same string.
// Each synthesized document carries one verification method whose fragment is
// the method-specific id. That method is published under the configured
// verification relationships ("authentication" by default).
//
// Resolve dereferences a key id within a document, scoped to a set of
// relationships. Misses are reported as *NotFoundError.
package did
