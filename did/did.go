package did

import (
	"fmt"
	"strings"
)

// MethodKey is the did:key method name.
const MethodKey = "key"

// DID is an immutable decentralized identifier of the form did:<method>:<method-specific-id>.
type DID string

func (d DID) String() string { return string(d) }

// Method returns the method segment, or "" if d is not a well-formed DID.
func (d DID) Method() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) != 3 || parts[0] != "did" {
		return ""
	}
	return parts[1]
}

// MethodSpecificID returns the last colon-delimited segment of d.
func (d DID) MethodSpecificID() string {
	s := string(d)
	return s[strings.LastIndex(s, ":")+1:]
}

// KeyID is the compound reference locating a verification method: did#fragment.
type KeyID string

func (k KeyID) String() string { return string(k) }

// NewKeyID joins id and fragment. It is total: any inputs yield a KeyID.
func NewKeyID(id DID, fragment string) KeyID {
	return KeyID(string(id) + "#" + fragment)
}

// SelfKeyID is the canonical self reference for id: the fragment is the
// method-specific id.
func SelfKeyID(id DID) KeyID {
	return NewKeyID(id, id.MethodSpecificID())
}

// DID returns the part before the first '#'.
func (k KeyID) DID() DID {
	s := string(k)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return DID(s[:i])
	}
	return DID(s)
}

// Fragment returns the part after the first '#', or "".
func (k KeyID) Fragment() string {
	s := string(k)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Relationship is a verification relationship name.
type Relationship string

const (
	Authentication       Relationship = "authentication"
	AssertionMethod      Relationship = "assertionMethod"
	KeyAgreement         Relationship = "keyAgreement"
	CapabilityInvocation Relationship = "capabilityInvocation"
	CapabilityDelegation Relationship = "capabilityDelegation"
)

// Relationships lists the known relationships in document order.
func Relationships() []Relationship {
	return []Relationship{Authentication, AssertionMethod, KeyAgreement, CapabilityInvocation, CapabilityDelegation}
}

// DefaultRelationships is used when synthesis options name none.
func DefaultRelationships() []Relationship {
	return []Relationship{Authentication}
}

// ParseRelationship matches a known relationship name exactly.
func ParseRelationship(s string) (Relationship, error) {
	for _, r := range Relationships() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", newError(KindInvalidOptions, fmt.Sprintf("unknown verification relationship %q", s))
}

// normalizeRelationships validates rels, drops duplicates and applies the default.
func normalizeRelationships(rels []Relationship) ([]Relationship, error) {
	if len(rels) == 0 {
		return DefaultRelationships(), nil
	}
	seen := make(map[Relationship]bool, len(rels))
	out := make([]Relationship, 0, len(rels))
	for _, r := range rels {
		if _, err := ParseRelationship(string(r)); err != nil {
			return nil, err
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}
