package did

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Contexts emitted on every serialized document.
var documentContexts = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/ed25519-2020/v1",
}

// VerificationMethod is a named key entry within a document.
type VerificationMethod struct {
	ID                 KeyID  `json:"id" yaml:"id"`
	Type               string `json:"type" yaml:"type"`
	Controller         DID    `json:"controller" yaml:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase" yaml:"publicKeyMultibase"`
}

// PublicKey decodes the key referenced by the method.
func (vm VerificationMethod) PublicKey() (KeyType, []byte, error) {
	return decodePublicKey(vm.PublicKeyMultibase)
}

// Document is an identity document. It is immutable once built: accessors
// return copies.
type Document struct {
	id            DID
	methods       []VerificationMethod
	relationships map[Relationship][]KeyID
}

// NewDocument assembles and validates a document. Relationship lists keep
// their given order.
func NewDocument(id DID, methods []VerificationMethod, relationships map[Relationship][]KeyID) (*Document, error) {
	doc := &Document{
		id:            id,
		methods:       slices.Clone(methods),
		relationships: make(map[Relationship][]KeyID, len(relationships)),
	}
	for r, ids := range relationships {
		if len(ids) == 0 {
			continue
		}
		doc.relationships[r] = slices.Clone(ids)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) ID() DID { return d.id }

// VerificationMethods returns the methods in document order.
func (d *Document) VerificationMethods() []VerificationMethod {
	return slices.Clone(d.methods)
}

// Relationship returns the key ids listed under r.
func (d *Document) Relationship(r Relationship) []KeyID {
	return slices.Clone(d.relationships[r])
}

// RelationshipNames returns the populated relationships in document order.
func (d *Document) RelationshipNames() []Relationship {
	var out []Relationship
	for _, r := range Relationships() {
		if len(d.relationships[r]) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks the document invariants: unique method ids and every
// relationship entry naming an existing method.
func (d *Document) Validate() error {
	if d.id == "" {
		return newError(KindEncoding, "document subject is empty")
	}
	seen := make(map[KeyID]bool, len(d.methods))
	for _, vm := range d.methods {
		if vm.ID == "" {
			return newError(KindEncoding, "verification method id is empty")
		}
		if seen[vm.ID] {
			return newError(KindEncoding, fmt.Sprintf("duplicate verification method %q", vm.ID))
		}
		seen[vm.ID] = true
	}
	for r, ids := range d.relationships {
		if _, err := ParseRelationship(string(r)); err != nil {
			return err
		}
		for _, id := range ids {
			if !seen[id] {
				return newError(KindEncoding, fmt.Sprintf("relationship %s references unknown verification method %q", r, id))
			}
		}
	}
	return nil
}

// wireDocument is the serialized form shared by JSON and YAML.
type wireDocument struct {
	Context              []string             `json:"@context" yaml:"@context"`
	ID                   DID                  `json:"id" yaml:"id"`
	VerificationMethod   []VerificationMethod `json:"verificationMethod" yaml:"verificationMethod"`
	Authentication       []KeyID              `json:"authentication,omitempty" yaml:"authentication,omitempty"`
	AssertionMethod      []KeyID              `json:"assertionMethod,omitempty" yaml:"assertionMethod,omitempty"`
	KeyAgreement         []KeyID              `json:"keyAgreement,omitempty" yaml:"keyAgreement,omitempty"`
	CapabilityInvocation []KeyID              `json:"capabilityInvocation,omitempty" yaml:"capabilityInvocation,omitempty"`
	CapabilityDelegation []KeyID              `json:"capabilityDelegation,omitempty" yaml:"capabilityDelegation,omitempty"`
}

func (d *Document) wire() wireDocument {
	methods := d.methods
	if methods == nil {
		methods = []VerificationMethod{}
	}
	return wireDocument{
		Context:              documentContexts,
		ID:                   d.id,
		VerificationMethod:   methods,
		Authentication:       d.relationships[Authentication],
		AssertionMethod:      d.relationships[AssertionMethod],
		KeyAgreement:         d.relationships[KeyAgreement],
		CapabilityInvocation: d.relationships[CapabilityInvocation],
		CapabilityDelegation: d.relationships[CapabilityDelegation],
	}
}

// MarshalJSON renders the W3C DID document shape. Output is deterministic,
// so it doubles as the canonical bytes for content addressing.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.wire())
}

// MarshalYAML lets gopkg.in/yaml.v3 render the same shape as MarshalJSON.
func (d *Document) MarshalYAML() (any, error) {
	return d.wire(), nil
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var w wireDocument
	if err := json.Unmarshal(b, &w); err != nil {
		return wrapError(KindEncoding, "decode document", err)
	}
	parsed, err := NewDocument(w.ID, w.VerificationMethod, map[Relationship][]KeyID{
		Authentication:       w.Authentication,
		AssertionMethod:      w.AssertionMethod,
		KeyAgreement:         w.KeyAgreement,
		CapabilityInvocation: w.CapabilityInvocation,
		CapabilityDelegation: w.CapabilityDelegation,
	})
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// ParseDocument decodes and validates a JSON document.
func ParseDocument(b []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		var de *Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, wrapError(KindEncoding, "decode document", err)
	}
	return &d, nil
}

// buildKeyDocument assembles the did:key document for one public key, with
// the self key listed under every relationship in rels.
func buildKeyDocument(kt KeyType, pub []byte, rels []Relationship) (*Document, error) {
	id, err := FromPublicKey(kt, pub)
	if err != nil {
		return nil, err
	}
	vm := VerificationMethod{
		ID:                 SelfKeyID(id),
		Type:               verificationMethodType(kt),
		Controller:         id,
		PublicKeyMultibase: id.MethodSpecificID(),
	}
	relationships := make(map[Relationship][]KeyID, len(rels))
	for _, r := range rels {
		relationships[r] = []KeyID{vm.ID}
	}
	return NewDocument(id, []VerificationMethod{vm}, relationships)
}
